package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"

	"github.com/nhle/mailclient/internal/model"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(model.LogConfig{Level: "DEBUG", Format: "json"}, &buf)
	be.Err(t, err, nil)
	be.Equal(t, log.GetLevel(), zerolog.DebugLevel)

	log.Debug().Str("k", "v").Msg("hello")
	be.True(t, strings.Contains(buf.String(), `"k":"v"`))

	_, err = newLogger(model.LogConfig{Level: "loud"}, &buf)
	be.Err(t, err, "parsing log level")

	_, err = newLogger(model.LogConfig{Format: "xml"}, &buf)
	be.Err(t, err, "unknown log format")
}

func TestConfigInitThenShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailclient", "config.yaml")

	var out bytes.Buffer
	be.Err(t, runConfigInit(path, false, &out), nil)
	be.True(t, strings.Contains(out.String(), path))

	be.Err(t, runConfigInit(path, false, &out), "already exists")
	be.Err(t, runConfigInit(path, true, &out), nil)

	out.Reset()
	be.Err(t, runConfigShow(path, &out), nil)
	be.True(t, strings.Contains(out.String(), "id_scheme: sequence"))
	be.True(t, strings.Contains(out.String(), "qq.com"))
}
