package models

import "io"

// Upload is a file received with a submission and not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}
