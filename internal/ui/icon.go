package ui

import "encoding/base64"

// iconBytes is a placeholder 1x1 transparent PNG until the real icon
// set lands with the packaging work.
var iconBytes, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")
