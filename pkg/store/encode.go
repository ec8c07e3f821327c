package store

import "github.com/sweepgrid/sweepgrid/pkg/grid"

func encodeValues(kind grid.Kind, values []interface{}) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		s, err := grid.EncodeScalar(kind, v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decodeValues(kind grid.Kind, values []string) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	for i, s := range values {
		v, err := grid.DecodeScalar(kind, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
