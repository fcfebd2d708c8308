package model

import "encoding/json"

// OptionalString はJSONリクエストにおける「未指定」「明示的null」「値あり」を
// 区別できる文字列フィールドを表す。
//   - キー自体が存在しない場合: Set=false
//   - キーがnullの場合:        Set=true, Value=nil
//   - キーに値がある場合:       Set=true, Value=&値
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON はキーが存在した事実を記録してから値をデコードする。
// 親構造体のデコード時、キーが存在しないフィールドは呼び出されない。
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

// OptionalBool はJSONリクエストにおける「未指定」「明示的null」「値あり」を
// 区別できる真偽値フィールドを表す。
type OptionalBool struct {
	Set   bool
	Value *bool
}

// UnmarshalJSON はキーが存在した事実を記録してから値をデコードする。
func (o *OptionalBool) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}
