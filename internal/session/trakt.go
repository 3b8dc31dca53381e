package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// AccountReader reads the account of the authenticated user.
type AccountReader interface {
	AccountSettings(ctx context.Context) (json.RawMessage, error)
}

// TraktAccountInfo returns the demonstration call made at the end of
// a Trakt session: it prints the raw account information.
func TraktAccountInfo(c AccountReader) APICall {
	return func(ctx context.Context, out io.Writer) error {
		fmt.Fprintln(out, "Requesting account information:")
		info, err := c.AccountSettings(ctx)
		if err != nil {
			return fmt.Errorf("get account information: %w", err)
		}
		fmt.Fprintf(out, "Information: %s\n", info)
		return nil
	}
}
