package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	cfg := Config{ServiceName: "lexd", ServiceVersion: "1.2.3"}
	res := newResource(&cfg)
	require.NotNil(t, res)

	got := map[string]string{}
	for _, attr := range res.Attributes() {
		got[string(attr.Key)] = attr.Value.AsString()
	}
	assert.Equal(t, "lexd", got["service.name"])
	assert.Equal(t, "1.2.3", got["service.version"])
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "otel.internal:4318", stripScheme("https://otel.internal:4318"))
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "localhost:4317", stripScheme("localhost:4317"))
}
