package multipart

import (
	"encoding/xml"
	"sort"
)

type completeMultipartUploadPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUpload struct {
	XMLName xml.Name                      `xml:"CompleteMultipartUpload"`
	Parts   []completeMultipartUploadPart `xml:"Part"`
}

// completeRequestBody renders the S3 CompleteMultipartUpload XML body
// from a set of finished parts, in ascending part-number order.
func completeRequestBody(parts []partResult) string {
	sorted := append([]partResult(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].partNumber < sorted[j].partNumber })
	doc := completeMultipartUpload{Parts: make([]completeMultipartUploadPart, len(sorted))}
	for i, p := range sorted {
		doc.Parts[i] = completeMultipartUploadPart{PartNumber: p.partNumber, ETag: p.etag}
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "<CompleteMultipartUpload></CompleteMultipartUpload>"
	}
	return string(out)
}
