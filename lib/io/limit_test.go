package iolib

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestLimitReader(t *testing.T) {
	got, err := io.ReadAll(LimitReader(strings.NewReader("abcdef"), 4))
	assert.NoError(t, err)
	assert.Equal(t, "abcd", string(got))
}

func TestCapReader(t *testing.T) {
	errTooLarge := errors.New("too large")

	testcases := []struct {
		desc    string
		input   string
		n       uint
		want    string
		wantErr error
	}{
		{desc: "below cap", input: "abc", n: 4, want: "abc"},
		{desc: "exact fit", input: "abcd", n: 4, want: "abcd"},
		{desc: "over cap", input: "abcde", n: 4, want: "abcd", wantErr: errTooLarge},
		{desc: "zero cap with data", input: "a", n: 0, wantErr: errTooLarge},
		{desc: "zero cap empty", input: "", n: 0},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			// One byte per read so the cap is reached mid-stream.
			r := CapReader(iotest.OneByteReader(strings.NewReader(tc.input)), tc.n, errTooLarge)

			got, err := io.ReadAll(r)
			assert.Equal(t, tc.want, string(got))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// emptyReader never makes progress.
type emptyReader struct{ reads int }

func (r *emptyReader) Read([]byte) (int, error) {
	r.reads++
	return 0, nil
}

func TestCapReaderNoProgress(t *testing.T) {
	src := &emptyReader{}
	r := CapReader(src, 0, errors.New("too large"))

	n, err := r.Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.ErrNoProgress)
	assert.Equal(t, maxEmptyReads, src.reads)
}
