package statedb

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type statedbSuite struct {
	suite.Suite
	state *StateDB
}

func TestStatedbSuite(t *testing.T) {
	suite.Run(t, new(statedbSuite))
}

func (s *statedbSuite) SetupTest() {
	s.state = NewMem()
}

func (s *statedbSuite) TestGetPutDelete() {
	_, err := s.state.Get("a")
	s.Equal(ErrNotFound, err)

	s.state.Put("a", []byte("1"))
	v, err := s.state.Get("a")
	s.NoError(err)
	s.Equal([]byte("1"), v)

	s.state.Delete("a")
	_, err = s.state.Get("a")
	s.Equal(ErrNotFound, err)
}

func (s *statedbSuite) TestCommitPersists() {
	s.state.Put("k:1", []byte("x"))
	s.state.Put("k:2", []byte("y"))
	s.NoError(s.state.Commit())

	v, err := s.state.Get("k:1")
	s.NoError(err)
	s.Equal([]byte("x"), v)

	keys, err := s.state.Keys("k:")
	s.NoError(err)
	s.Equal([]string{"k:1", "k:2"}, keys)
}

func (s *statedbSuite) TestRevertDropsBufferedWrites() {
	s.state.Put("k:1", []byte("committed"))
	s.NoError(s.state.Commit())

	snap := s.state.Snapshot()
	s.state.Put("k:1", []byte("overwritten"))
	s.state.Put("k:2", []byte("new"))
	s.state.Delete("k:1")
	s.state.RevertToSnapshot(snap)

	v, err := s.state.Get("k:1")
	s.NoError(err)
	s.Equal([]byte("committed"), v)

	_, err = s.state.Get("k:2")
	s.Equal(ErrNotFound, err)
}

func (s *statedbSuite) TestNestedSnapshots() {
	outer := s.state.Snapshot()
	s.state.Put("a", []byte("1"))

	inner := s.state.Snapshot()
	s.state.Put("b", []byte("2"))
	s.state.RevertToSnapshot(inner)

	_, err := s.state.Get("b")
	s.Equal(ErrNotFound, err)
	v, err := s.state.Get("a")
	s.NoError(err)
	s.Equal([]byte("1"), v)

	s.state.RevertToSnapshot(outer)
	_, err = s.state.Get("a")
	s.Equal(ErrNotFound, err)
}

func (s *statedbSuite) TestKeysMergesBufferOverStore() {
	s.state.Put("p:1", []byte("x"))
	s.NoError(s.state.Commit())

	s.state.Put("p:2", []byte("y"))
	s.state.Delete("p:1")

	keys, err := s.state.Keys("p:")
	s.NoError(err)
	s.Equal([]string{"p:2"}, keys)
}
