package utcp

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI is the codec used for every manual/provider/tool (de)serialization
// path in this package. json-iterator is a drop-in, faster replacement for
// encoding/json and is already part of the dependency stack.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonMarshal(v interface{}) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return jsonAPI.Unmarshal(data, v)
}

// jsonEncodeLine writes v as a single newline-terminated JSON object, the
// framing the TCP/UDP transports' line-oriented protocols use.
func jsonEncodeLine(w io.Writer, v interface{}) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// jsonUnmarshalReader decodes a single JSON value from r using the
// streaming decoder, for transports reading one object off a socket.
func jsonUnmarshalReader(r io.Reader, v interface{}) error {
	return jsonAPI.NewDecoder(r).Decode(v)
}
