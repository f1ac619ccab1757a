package xa

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		xid  Xid
		want string
	}{
		{
			name: "simple",
			xid: Xid{
				FormatID:            5,
				BranchQualifier:     []byte{0xab},
				GlobalTransactionID: []byte{0xcd},
			},
			want: "XID_5_ab_cd",
		},
		{
			name: "empty byte sequences",
			xid:  Xid{FormatID: 0},
			want: "XID_0__",
		},
		{
			name: "negative format id",
			xid: Xid{
				FormatID:            -1,
				BranchQualifier:     []byte{0x00},
				GlobalTransactionID: []byte{0xff, 0x10},
			},
			want: "XID_-1_00_ff10",
		},
		{
			name: "multi byte",
			xid: Xid{
				FormatID:            4660,
				BranchQualifier:     []byte{0xde, 0xad, 0xbe, 0xef},
				GlobalTransactionID: []byte{0x01, 0x02, 0x03},
			},
			want: "XID_4660_deadbeef_010203",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.xid); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	xid, err := Parse("XID_5_ab_cd10")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if xid.FormatID != 5 {
		t.Errorf("expected format id 5, got %d", xid.FormatID)
	}
	if !bytes.Equal(xid.BranchQualifier, []byte{0xab}) {
		t.Errorf("unexpected branch qualifier %x", xid.BranchQualifier)
	}
	if !bytes.Equal(xid.GlobalTransactionID, []byte{0xcd, 0x10}) {
		t.Errorf("unexpected global transaction id %x", xid.GlobalTransactionID)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"too few tokens", "XID_5_ab"},
		{"too many tokens", "XID_5_ab_cd_ee"},
		{"wrong prefix", "FOO_5_ab_cd"},
		{"non-integer format id", "XID_x_ab_cd"},
		{"non-hex branch qualifier", "XID_5_zz_cd"},
		{"non-hex global transaction id", "XID_5_ab_zz"},
		{"odd-length hex", "XID_5_abc_cd"},
		{"empty string", ""},
		{"lowercase prefix", "xid_5_ab_cd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q) should have failed", tt.input)
			}

			var malformed *MalformedXidError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected *MalformedXidError, got %T", err)
			}
			if malformed.Text != tt.input {
				t.Errorf("error should carry the original input %q, got %q", tt.input, malformed.Text)
			}
			if !IsMalformed(err) {
				t.Error("IsMalformed should report true")
			}
			if !strings.Contains(err.Error(), "malformed transaction identifier") {
				t.Errorf("unexpected error message %q", err.Error())
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		xid  Xid
	}{
		{"typical", Xid{FormatID: 7, BranchQualifier: []byte{0x01, 0x02}, GlobalTransactionID: []byte{0x0a, 0x0b, 0x0c}}},
		{"empty branch", Xid{FormatID: 1, GlobalTransactionID: []byte{0xff}}},
		{"empty global", Xid{FormatID: 1, BranchQualifier: []byte{0xff}}},
		{"both empty", Xid{FormatID: 42}},
		{"large format id", Xid{FormatID: 1<<40 + 3, BranchQualifier: []byte{0x00, 0x00}, GlobalTransactionID: []byte{0x80}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(Format(tt.xid))
			if err != nil {
				t.Fatalf("round trip failed to parse: %v", err)
			}

			if got.FormatID != tt.xid.FormatID {
				t.Errorf("format id changed: %d != %d", got.FormatID, tt.xid.FormatID)
			}
			if !bytes.Equal(got.BranchQualifier, tt.xid.BranchQualifier) {
				t.Errorf("branch qualifier changed: %x != %x", got.BranchQualifier, tt.xid.BranchQualifier)
			}
			if !bytes.Equal(got.GlobalTransactionID, tt.xid.GlobalTransactionID) {
				t.Errorf("global transaction id changed: %x != %x", got.GlobalTransactionID, tt.xid.GlobalTransactionID)
			}
		})
	}
}

func TestXidString(t *testing.T) {
	x := Xid{FormatID: 9, BranchQualifier: []byte{0x01}, GlobalTransactionID: []byte{0x02}}
	if x.String() != Format(x) {
		t.Errorf("String() = %q, want %q", x.String(), Format(x))
	}
}
