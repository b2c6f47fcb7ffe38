package domain

import "fmt"

// Question is the single question carried by a message.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// Key returns the exact-match lookup key for the question.
func (q Question) Key() string {
	return GenerateKey(q.Name, q.Type, q.Class)
}

func (q Question) String() string {
	return fmt.Sprintf("%s, %s, %s", q.Name, q.Type, q.Class)
}
