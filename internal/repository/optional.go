package repository

// Optional 可选更新字段：Set 表示写入新值，零值表示保持不变
type Optional[T any] struct {
	value T
	set   bool
}

// Set 构造需要写入的字段
func Set[T any](value T) Optional[T] {
	return Optional[T]{value: value, set: true}
}

// Get 返回字段值及是否需要写入
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func putIfSet[T any](columns map[string]interface{}, column string, field Optional[T]) {
	if value, ok := field.Get(); ok {
		columns[column] = value
	}
}
