package playback

import (
	"errors"
	"testing"
)

func TestResolveRange(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		size       int64
		wantStart  int64
		wantLength int64
		wantOK     bool
		wantErr    error
	}{
		{name: "no header", header: "", size: 100, wantOK: false},
		{name: "missing bytes prefix", header: "0-99", size: 100, wantErr: ErrRangeSyntax},
		{name: "full range", header: "bytes=0-99", size: 100, wantStart: 0, wantLength: 100, wantOK: true},
		{name: "open ended", header: "bytes=50-", size: 100, wantStart: 50, wantLength: 50, wantOK: true},
		{name: "bounded", header: "bytes=10-19", size: 100, wantStart: 10, wantLength: 10, wantOK: true},
		{name: "suffix", header: "bytes=-10", size: 100, wantStart: 90, wantLength: 10, wantOK: true},
		{name: "suffix longer than file", header: "bytes=-500", size: 100, wantStart: 0, wantLength: 100, wantOK: true},
		{name: "suffix zero", header: "bytes=-0", size: 100, wantErr: ErrRangeSyntax},
		{name: "end clamped to file", header: "bytes=90-150", size: 100, wantStart: 90, wantLength: 10, wantOK: true},
		{name: "start past end", header: "bytes=50-10", size: 100, wantErr: ErrRangeUnsatisfiable},
		{name: "start at file size", header: "bytes=100-", size: 100, wantErr: ErrRangeUnsatisfiable},
		{name: "multi range takes first", header: "bytes=0-4, 10-14", size: 100, wantStart: 0, wantLength: 5, wantOK: true},
		{name: "garbage start", header: "bytes=abc-10", size: 100, wantErr: ErrRangeSyntax},
		{name: "garbage end", header: "bytes=0-def", size: 100, wantErr: ErrRangeSyntax},
		{name: "negative start", header: "bytes=-5-10", size: 100, wantErr: ErrRangeSyntax},
		{name: "bare number", header: "bytes=42", size: 100, wantErr: ErrRangeSyntax},
		{name: "empty spec", header: "bytes=-", size: 100, wantErr: ErrRangeSyntax},
		{name: "empty file", header: "bytes=0-0", size: 0, wantErr: ErrRangeUnsatisfiable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br, ok, err := ResolveRange(tt.header, tt.size)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if br.Start != tt.wantStart || br.Length != tt.wantLength {
				t.Fatalf("range = {%d, %d}, want {%d, %d}", br.Start, br.Length, tt.wantStart, tt.wantLength)
			}
		})
	}
}

func TestByteRangeContentRange(t *testing.T) {
	br := ByteRange{Start: 10, Length: 5}
	if got := br.ContentRange(100); got != "bytes 10-14/100" {
		t.Fatalf("ContentRange = %q", got)
	}
	if got := br.End(); got != 14 {
		t.Fatalf("End = %d, want 14", got)
	}
}
