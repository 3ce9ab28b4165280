package model

import (
	"encoding/gob"
	"io"
	"sync"

	"github.com/ahmedalbuni/biorad/pkg/errors"
)

// EncodeGob は値を gob 形式で w に書き出す
//
// gob は int と float64、NaN を区別したまま往復できるため、
// チェックポイントの本体エンコーディングとして使う。
func EncodeGob(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode gob")
	}
	return nil
}

// DecodeGob は r から gob 形式の値を読み込む（v はポインタ）
func DecodeGob(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode gob")
	}
	return nil
}

var registerOnce sync.Once

// RegisterParamTypes registers the concrete types that may appear inside
// hyperparameter maps so they survive a gob round trip through
// map[string]interface{}.
func RegisterParamTypes() {
	registerOnce.Do(func() {
		gob.Register(float64(0))
		gob.Register(int(0))
		gob.Register("")
		gob.Register(false)
	})
}
