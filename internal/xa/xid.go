// Package xa implements the textual codec for XA transaction
// identifiers exchanged between distributed transaction participants.
//
// The wire form is `XID_<formatID>_<branchHex>_<globalHex>`: the literal
// prefix XID, the format id in decimal, then the branch qualifier and
// global transaction id as lowercase hex, joined by underscores. The
// format is an interchange contract between nodes and must round-trip
// exactly; the codec never interprets the byte contents.
package xa

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// prefix is the literal first token of every encoded identifier
const prefix = "XID"

// Xid identifies one branch of a distributed transaction.
// Immutable once constructed.
type Xid struct {
	// FormatID is the XA format identifier chosen by the transaction
	// manager that opened the transaction
	FormatID int64

	// GlobalTransactionID identifies the distributed transaction
	GlobalTransactionID []byte

	// BranchQualifier identifies this participant's branch within the
	// transaction
	BranchQualifier []byte
}

// MalformedXidError reports a decode failure. It covers every violation
// of the format (wrong token count, wrong prefix, non-integer format id,
// invalid hex) and carries the complete original input for diagnostics.
type MalformedXidError struct {
	// Text is the input that failed to parse
	Text string

	// Reason describes which part of the format was violated
	Reason string
}

// Error implements the error interface
func (e *MalformedXidError) Error() string {
	return fmt.Sprintf("malformed transaction identifier %q: %s", e.Text, e.Reason)
}

// IsMalformed checks if an error is a transaction identifier parse failure
func IsMalformed(err error) bool {
	_, ok := err.(*MalformedXidError)
	return ok
}

// Format encodes x into its textual wire form. Empty byte sequences
// encode as empty hex tokens.
func Format(x Xid) string {
	return strings.Join([]string{
		prefix,
		strconv.FormatInt(x.FormatID, 10),
		hex.EncodeToString(x.BranchQualifier),
		hex.EncodeToString(x.GlobalTransactionID),
	}, "_")
}

// Parse decodes the textual wire form produced by Format. It requires
// exactly four underscore-separated tokens: the XID prefix, a decimal
// format id, and two valid hex strings (either may be empty). Any
// violation fails with a *MalformedXidError carrying the original input.
func Parse(s string) (Xid, error) {
	tokens := strings.Split(s, "_")
	if len(tokens) != 4 {
		return Xid{}, &MalformedXidError{Text: s, Reason: fmt.Sprintf("expected 4 tokens, got %d", len(tokens))}
	}

	if tokens[0] != prefix {
		return Xid{}, &MalformedXidError{Text: s, Reason: fmt.Sprintf("expected prefix %q, got %q", prefix, tokens[0])}
	}

	formatID, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return Xid{}, &MalformedXidError{Text: s, Reason: fmt.Sprintf("format id %q is not an integer", tokens[1])}
	}

	branch, err := hex.DecodeString(tokens[2])
	if err != nil {
		return Xid{}, &MalformedXidError{Text: s, Reason: fmt.Sprintf("branch qualifier %q is not valid hex", tokens[2])}
	}

	global, err := hex.DecodeString(tokens[3])
	if err != nil {
		return Xid{}, &MalformedXidError{Text: s, Reason: fmt.Sprintf("global transaction id %q is not valid hex", tokens[3])}
	}

	return Xid{
		FormatID:            formatID,
		GlobalTransactionID: global,
		BranchQualifier:     branch,
	}, nil
}

// String returns the textual wire form
func (x Xid) String() string {
	return Format(x)
}
