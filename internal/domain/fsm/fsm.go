package fsm

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// 遷移表（from -> 許可するto）
// 表にない状態は終端扱い
type Table[S ~string] map[S][]S

// from -> to が許可されているか
func (t Table[S]) Can(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// 終端状態か（次の遷移先が無い）
func (t Table[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}

// 許可されていなければ ErrInvalidTransition を包んで返す
func (t Table[S]) Validate(from, to S) error {
	if t.Can(from, to) {
		return nil
	}
	return &TransitionError{From: string(from), To: string(to)}
}

type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
