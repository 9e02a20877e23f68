package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Config is the module-defined configuration record: the JSON text of a
// configuration file. The launcher passes the bytes to the module verbatim
// and never inspects them. A nil Config means none was supplied.
type Config json.RawMessage

// JSON returns the wire form handed to service modules. An empty Config
// encodes as an empty object.
func (c Config) JSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("{}"), nil
	}
	return []byte(c), nil
}

// Decode decodes the record into out, matching fields by their json tag.
// It is meant for Go service implementations that own the record layout.
// Numbers keep their full precision.
func (c Config) Decode(out any) error {
	b, _ := c.JSON()
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("service: decoding config: %w: %w", ErrConfigParse, err)
	}

	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := md.Decode(raw); err != nil {
		return fmt.Errorf("service: decoding config: %w: %w", ErrConfigParse, err)
	}
	return nil
}
