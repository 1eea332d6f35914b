package ftp

import (
	"fmt"
	"io"
)

// Retrieve downloads data from the remote path to an io.Writer, using
// whichever data-channel mode (active or passive) the client is
// configured for. The ordering is fixed by the data-channel negotiator
// (spec.md §3): the connection must exist before RETR is sent, and the
// mandatory 226/225 completion reply is read after the data channel's
// EOF, whether or not the copy itself succeeded.
func (c *Client) Retrieve(remotePath string, w io.Writer) error {
	_, dataConn, err := c.cmdDataConnFrom("RETR", remotePath)
	if err != nil {
		return err
	}

	if c.progress != nil {
		w = &ProgressWriter{Writer: w, Callback: c.progress}
	}

	_, copyErr := io.Copy(w, dataConn)
	finishErr := c.finishDataConn(dataConn)

	if copyErr != nil {
		return fmt.Errorf("download failed: %w", copyErr)
	}
	if finishErr != nil {
		return finishErr
	}
	return nil
}
