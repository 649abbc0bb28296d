package loader

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-crystal/common"
	"github.com/Carmen-Shannon/oxy-crystal/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// xyzLoaderBackend reads the XYZ format: an atom count, a comment line, then one
// "symbol x y z" line per atom. An extended-XYZ Lattice="ax ay az bx by bz cx cy cz" entry in the
// comment line becomes the unit cell.
type xyzLoaderBackend struct{}

var _ loaderBackend = &xyzLoaderBackend{}

func newXYZLoaderBackend() loaderBackend {
	return &xyzLoaderBackend{}
}

func (b *xyzLoaderBackend) Parse(r io.Reader) (*parsedStructure, error) {
	scanner := bufio.NewScanner(r)
	line := 0
	next := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		line++
		return scanner.Text(), true
	}

	header, ok := next()
	for ok && strings.TrimSpace(header) == "" {
		header, ok = next()
	}
	if !ok {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("xyz: %w", err)
		}
		return nil, fmt.Errorf("xyz: empty input")
	}
	count, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("xyz: line %d: invalid atom count %q", line, strings.TrimSpace(header))
	}

	comment, ok := next()
	if !ok {
		return nil, fmt.Errorf("xyz: missing comment line")
	}
	out := &parsedStructure{title: strings.TrimSpace(comment), atoms: make([]scene.Atom, 0, count)}
	if cell, found, err := parseLattice(comment); err != nil {
		return nil, fmt.Errorf("xyz: line %d: %w", line, err)
	} else if found {
		out.unitCell = &cell
	}

	unknown := map[string]bool{}
	for len(out.atoms) < count {
		text, ok := next()
		if !ok {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("xyz: %w", err)
			}
			return nil, fmt.Errorf("xyz: expected %d atoms, found %d", count, len(out.atoms))
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("xyz: line %d: expected symbol and three coordinates", line)
		}
		var pos mgl32.Vec3
		for k := range 3 {
			v, err := strconv.ParseFloat(fields[k+1], 32)
			if err != nil {
				return nil, fmt.Errorf("xyz: line %d: invalid coordinate %q", line, fields[k+1])
			}
			pos[k] = float32(v)
		}

		symbol := resolveSymbol(fields[0])
		e, known := lookupElement(symbol)
		if !known {
			unknown[symbol] = true
		}
		out.atoms = append(out.atoms, scene.Atom{
			Position: pos,
			Radius:   e.covalentRadius,
			Color:    e.color,
			Element:  symbol,
			Name:     fields[0],
		})
	}
	if len(unknown) > 0 {
		common.Logger().Warn("xyz: unknown elements use the default radius", "symbols", slices.Sorted(maps.Keys(unknown)))
	}
	return out, nil
}

// parseLattice extracts the extended-XYZ Lattice entry of a comment line.
func parseLattice(comment string) ([16]float32, bool, error) {
	const key = `lattice="`
	i := strings.Index(strings.ToLower(comment), key)
	if i < 0 {
		return [16]float32{}, false, nil
	}
	rest := comment[i+len(key):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return [16]float32{}, false, fmt.Errorf("unterminated Lattice entry")
	}
	fields := strings.Fields(rest[:end])
	if len(fields) != 9 {
		return [16]float32{}, false, fmt.Errorf("lattice has %d values, want 9", len(fields))
	}
	box := common.Identity4()
	for k, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return [16]float32{}, false, fmt.Errorf("invalid lattice value %q", f)
		}
		// column k/3 holds lattice vector a, b or c
		box[(k/3)*4+k%3] = float32(v)
	}
	return box, true, nil
}
