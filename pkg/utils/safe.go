package utils

import (
	"context"
	"io"
)

// SafeClose closes c and logs the error if any.
func SafeClose(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		CtxLogger(ctx).Warn("failed to close", ErrLog(err))
	}
}

// SafeWrite writes data to w and logs the error if any. It is used for HTTP response body.
func SafeWrite(ctx context.Context, w io.Writer, data []byte) {
	if _, err := w.Write(data); err != nil {
		CtxLogger(ctx).Warn("failed to write", ErrLog(err))
	}
}
