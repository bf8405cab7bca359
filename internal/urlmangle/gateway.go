package urlmangle

import (
	"encoding/base64"
	"strings"
)

// NewGatewayTransform builds a transform that rewrites a URL into a query
// parameter of a proxy gateway, carrying the original URL base64-encoded
// for safe transport.
func NewGatewayTransform(baseURL string) Transform {
	base := strings.TrimRight(baseURL, "/")
	return func(url string) string {
		encoded := base64.StdEncoding.EncodeToString([]byte(url))
		return base + "/index.php?q=" + encoded + "&hl=e8"
	}
}
