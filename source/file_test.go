package source_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henridf/era1/source"
	"github.com/henridf/era1/testing/mocks"
)

func collect(t *testing.T, stream func(chan<- source.Response) error) ([]source.Response, error) {
	t.Helper()
	out := make(chan source.Response)
	errc := make(chan error, 1)
	go func() {
		errc <- stream(out)
	}()
	var responses []source.Response
	for resp := range out {
		responses = append(responses, resp)
	}
	return responses, <-errc
}

func TestFile(t *testing.T) {
	input := `
{"block":{"number":8191,"header":{"number":8191}}}
{"block":{"number":8192,"header":{"number":8192,"timestamp":1438269988,"difficulty":{"bytes":"0x0400"}}}}
{"undo":{"lastValidNumber":8191,"lastValidHash":"0x01"}}
{"block":{"number":16384}}
`
	f := source.NewFile(mocks.NoopLogger, strings.NewReader(input))
	responses, err := collect(t, func(out chan<- source.Response) error {
		return f.Stream(context.Background(), 8192, 16384, out)
	})
	require.NoError(t, err)
	require.Len(t, responses, 2)

	b := responses[0].Block
	require.NotNil(t, b)
	assert.Equal(t, uint64(8192), b.Number)
	require.NotNil(t, b.Header.Timestamp)
	assert.Equal(t, uint64(1438269988), *b.Header.Timestamp)
	assert.Equal(t, []byte{0x04, 0x00}, []byte(b.Header.Difficulty.Bytes))

	require.NotNil(t, responses[1].Undo)
	assert.Equal(t, uint64(8191), responses[1].Undo.LastValidNumber)
}

func TestFileMalformed(t *testing.T) {
	f := source.NewFile(mocks.NoopLogger, strings.NewReader(`{"block":`))
	_, err := collect(t, func(out chan<- source.Response) error {
		return f.Stream(context.Background(), 0, 10, out)
	})
	assert.Error(t, err)
}

func TestFileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := source.NewFile(mocks.NoopLogger, strings.NewReader(`{"block":{"number":1}}`))
	out := make(chan source.Response)
	err := f.Stream(ctx, 0, 10, out)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := <-out
	assert.False(t, ok)
}
