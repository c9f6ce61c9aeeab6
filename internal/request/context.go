package request

// Context key constants recognized by the request-production pipeline.
// Unknown keys are treated as opaque pass-through.
const (
	XOGRequestID            = "x-og-request-id"
	XOGObjectName            = "x-og-object-name"
	XOGObjectSize            = "x-og-object-size"
	XOGContainerName         = "x-og-container-name"
	XOGContainerPrefix       = "x-og-container-prefix"
	XOGContainerSuffix       = "x-og-container-suffix"
	XOGUsername              = "x-og-username"
	XOGPassword              = "x-og-password"
	XOGKeystoneToken         = "x-og-keystone-token"
	XOGStorageAccountName    = "x-og-storage-account-name"
	XOGMultipartRequest      = "x-og-multipart-request"
	XOGMultipartUploadID     = "x-og-multipart-upload-id"
	XOGMultipartPartNumber   = "x-og-multipart-part-number"
	XOGMultipartPartSize     = "x-og-multipart-part-size"
	XOGMultipartMaxParts     = "x-og-multipart-max-parts"
	XOGMultipartContainer    = "x-og-multipart-container"
	XOGMultipartBodyDataType = "x-og-multipart-body-data-type"
	XOGContentMD5            = "x-og-content-md5"
	XOGLegalHold             = "x-og-legal-hold"
	XOGObjectRetention       = "x-og-object-retention"
	XOGResponseBodyConsumer  = "x-og-response-body-consumer"
)
