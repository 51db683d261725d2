package sink

import (
	"context"
	"testing"

	"github.com/kmlixh/consulWatch/errors"
	"github.com/kmlixh/consulWatch/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

func TestJSONDecoder(t *testing.T) {
	var cfg serverConfig
	var notified string
	d := NewJSONDecoder("server", &cfg, func(name string, target interface{}) {
		notified = name
	})

	require.NoError(t, d.OnKvChange(context.Background(), kv.ChangeBatch{
		"server": {Value: `{"host":"10.0.0.1","port":8080}`},
		"other":  {Value: "ignored"},
	}))
	assert.Equal(t, serverConfig{Host: "10.0.0.1", Port: 8080}, cfg)
	assert.Equal(t, "server", notified)

	require.NoError(t, d.OnKvChange(context.Background(), kv.ChangeBatch{"server": {Deleted: true}}))
	assert.Equal(t, 8080, cfg.Port, "deletion keeps the last decoded value")
}

func TestYamlDecoder(t *testing.T) {
	var cfg serverConfig
	d := NewYamlDecoder("server", &cfg)

	require.NoError(t, d.OnKvChange(context.Background(), kv.ChangeBatch{
		"server": {Value: "host: db.local\nport: 5432\n"},
	}))
	assert.Equal(t, serverConfig{Host: "db.local", Port: 5432}, cfg)

	err := d.OnKvChange(context.Background(), kv.ChangeBatch{"server": {Value: "port: [\n"}})
	assert.Equal(t, errors.ErrCodeDecode, errors.GetErrorCode(err))
}
