package vm

import "github.com/holiman/uint256"

type stack struct {
	data []uint256.Int
}

func newStack() *stack { return &stack{data: make([]uint256.Int, 0, 16)} }

func (s *stack) len() int { return len(s.data) }

func (s *stack) push(v *uint256.Int) { s.data = append(s.data, *v) }

func (s *stack) pop() uint256.Int {
	n := len(s.data) - 1
	v := s.data[n]
	s.data = s.data[:n]
	return v
}

func (s *stack) peek(depth int) *uint256.Int {
	return &s.data[len(s.data)-1-depth]
}

func (s *stack) swap(depth int) {
	n := len(s.data) - 1
	s.data[n], s.data[n-depth] = s.data[n-depth], s.data[n]
}

func (s *stack) dup(depth int) {
	v := s.data[len(s.data)-depth]
	s.data = append(s.data, v)
}
