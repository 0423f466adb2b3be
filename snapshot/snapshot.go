// Package snapshot persists simulator state and renders it as images.
//
// The binary form is a 16 byte header followed by the state words:
//
//	offset 0   magic "CAST"
//	offset 4   uint32 format version
//	offset 8   uint32 instance count
//	offset 12  uint32 state words per instance
//	offset 16  count*stateSize int32 words
//
// Every integer is little-endian.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gogpu/automata"
)

// Version is the format version written by Encode.
const Version = 1

const headerSize = 16

// chunkWords bounds the words Decode reads at once.
const chunkWords = 16 << 10

var magic = [4]byte{'C', 'A', 'S', 'T'}

var (
	// ErrFormat is returned by Decode for input that is not a snapshot.
	ErrFormat = errors.New("snapshot: not a state snapshot")

	// ErrVersion is returned by Decode for an unknown format version.
	ErrVersion = errors.New("snapshot: unsupported version")

	// ErrMismatch is returned by Restore when the snapshot does not fit the
	// simulator.
	ErrMismatch = errors.New("snapshot: shape mismatch")
)

// Snapshot is the state of every instance of a simulator, back to back.
type Snapshot struct {
	Count     int
	StateSize int
	State     []int32
}

// Capture reads the state of every instance of sim.
func Capture(sim automata.Simulator) (*Snapshot, error) {
	s := &Snapshot{
		Count:     sim.Size(),
		StateSize: sim.StateSize(),
		State:     make([]int32, sim.Size()*sim.StateSize()),
	}
	if err := sim.States(s.State); err != nil {
		return nil, fmt.Errorf("snapshot: capture: %w", err)
	}
	return s, nil
}

// Restore writes s into sim, which must have the same shape.
func (s *Snapshot) Restore(sim automata.Simulator) error {
	if sim.Size() != s.Count || sim.StateSize() != s.StateSize {
		return fmt.Errorf("%w: snapshot %dx%d, simulator %dx%d", ErrMismatch,
			s.Count, s.StateSize, sim.Size(), sim.StateSize())
	}
	if err := sim.SetStates(s.State); err != nil {
		return fmt.Errorf("snapshot: restore: %w", err)
	}
	return nil
}

// Instance returns the state of instance i. The slice aliases s.
func (s *Snapshot) Instance(i int) []int32 {
	return s.State[i*s.StateSize : (i+1)*s.StateSize]
}

// Encode writes s to w.
func Encode(w io.Writer, s *Snapshot) error {
	if len(s.State) != s.Count*s.StateSize {
		return fmt.Errorf("snapshot: %d words for %d instances of %d", len(s.State), s.Count, s.StateSize)
	}
	var hdr [headerSize]byte
	copy(hdr[:4], magic[:])
	binary.LittleEndian.PutUint32(hdr[4:], Version)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(s.Count))      //nolint:gosec // sizes are non-negative
	binary.LittleEndian.PutUint32(hdr[12:], uint32(s.StateSize)) //nolint:gosec // sizes are non-negative

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}
	var word [4]byte
	for _, v := range s.State {
		binary.LittleEndian.PutUint32(word[:], uint32(v)) //nolint:gosec // bit-preserving
		if _, err := bw.Write(word[:]); err != nil {
			return fmt.Errorf("snapshot: write state: %w", err)
		}
	}
	return bw.Flush()
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrFormat, err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, hdr[:4])
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	count := binary.LittleEndian.Uint32(hdr[8:])
	size := binary.LittleEndian.Uint32(hdr[12:])
	n := uint64(count) * uint64(size)
	if n > 1<<30 {
		return nil, fmt.Errorf("%w: %d instances of %d words", ErrFormat, count, size)
	}

	// Allocation grows with the words actually read, at most one chunk
	// beyond the data.
	br := bufio.NewReader(r)
	state := make([]int32, 0, min(n, chunkWords))
	buf := make([]byte, 4*min(n, chunkWords))
	for remaining := n; remaining > 0; {
		k := min(remaining, chunkWords)
		b := buf[:k*4]
		if _, err := io.ReadFull(br, b); err != nil {
			return nil, fmt.Errorf("%w: state: %w", ErrFormat, err)
		}
		for i := 0; i < len(b); i += 4 {
			state = append(state, int32(binary.LittleEndian.Uint32(b[i:]))) //nolint:gosec // bit-preserving
		}
		remaining -= k
	}
	s := &Snapshot{Count: int(count), StateSize: int(size), State: state}
	return s, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Snapshot) UnmarshalBinary(data []byte) error {
	d, err := Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = *d
	return nil
}

// Save writes s to the file at path.
func Save(path string, s *Snapshot) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := Encode(f, s); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Load reads the snapshot file at path.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
