package ftp

import "io"

// ProgressWriter wraps an io.Writer and reports progress via a callback.
// Used by Retrieve/DownloadFile when WithProgress is set; there is no
// upload path in this server's command surface (STOR is a non-goal),
// so there is no corresponding ProgressReader here.
type ProgressWriter struct {
	// Writer is the underlying writer
	Writer io.Writer

	// Callback is called after each Write with the total bytes transferred
	Callback func(bytesTransferred int64)

	// total tracks the total bytes written
	total int64
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += int64(n)
	if pw.Callback != nil && n > 0 {
		pw.Callback(pw.total)
	}
	return n, err
}
