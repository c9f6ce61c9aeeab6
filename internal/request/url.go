package request

import "net/url"

func parseURI(raw string) (*url.URL, error) {
	return url.Parse(raw)
}
