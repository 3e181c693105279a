package InflowGenerator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghodss/yaml"

	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/types"
)

/*
RestartState is everything a continuation restart needs to carry on the sequence of a
previous run: the temporal field on the lattice it was computed on, the noise stream
states and the step bookkeeping.
*/
type RestartState struct {
	Seed     uint64         `json:"seed"`
	Time     TimeState      `json:"time"`
	Lattice  lattice.Layout `json:"lattice"`
	Temporal []types.Vector `json:"temporal"`
	Streams  [][]byte       `json:"streams"`
}

type Store interface {
	// Load returns ok == false when nothing was saved
	Load(ctx context.Context) (rs *RestartState, ok bool, err error)
	Save(ctx context.Context, rs *RestartState) error
}

type MemoryStore struct {
	mu    sync.Mutex
	state *RestartState
}

func (ms *MemoryStore) Load(ctx context.Context) (rs *RestartState, ok bool, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err = ctx.Err(); err != nil || ms.state == nil {
		return
	}
	rs, ok = ms.state.clone(), true
	return
}

func (ms *MemoryStore) Save(ctx context.Context, rs *RestartState) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.state = rs.clone()
	return nil
}

func (rs *RestartState) clone() (c *RestartState) {
	c = &RestartState{
		Seed:     rs.Seed,
		Time:     rs.Time,
		Lattice:  rs.Lattice,
		Temporal: append([]types.Vector(nil), rs.Temporal...),
		Streams:  make([][]byte, len(rs.Streams)),
	}
	for i, s := range rs.Streams {
		c.Streams[i] = append([]byte(nil), s...)
	}
	return
}

// FileStore keeps the restart state in one YAML file, replaced whole on every save
type FileStore struct {
	FileName string
}

func (fs *FileStore) Load(ctx context.Context) (rs *RestartState, ok bool, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var data []byte
	if data, err = os.ReadFile(fs.FileName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		return
	}
	rs = &RestartState{}
	if err = yaml.Unmarshal(data, rs); err != nil {
		err = fmt.Errorf("reading restart file %s: %w", fs.FileName, err)
		return
	}
	ok = true
	return
}

func (fs *FileStore) Save(ctx context.Context, rs *RestartState) (err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	var data []byte
	if data, err = yaml.Marshal(rs); err != nil {
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(fs.FileName), filepath.Base(fs.FileName)+".*")
	if err != nil {
		return
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	return os.Rename(tmp.Name(), fs.FileName)
}
