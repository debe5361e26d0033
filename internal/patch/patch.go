// Package patch writes the per-player patch container the client applies to
// a clean ROM: a zip archive with a JSON manifest and a binary list of ROM
// write tokens.
package patch

import (
	"archive/zip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Container constants.
const (
	Game             = "Kirby & The Amazing Mirror"
	BaseChecksum     = "DF5EFE075B35859529EBF82A4D824458" // md5 of the USA ROM
	FileEnding       = ".apkirbyam"
	ResultFileEnding = ".gba"
	ContainerVersion = 7

	ManifestFile = "archipelago.json"
	TokenFile    = "token_data.bin"
)

// TokenType is the operation a token applies.
type TokenType uint8

// TokenWrite copies bytes to an offset. It is the only type emitted.
const TokenWrite TokenType = 0

// Token is one ROM modification.
type Token struct {
	Type   TokenType
	Offset uint32
	Data   []byte
}

// Tokens is an ordered list of ROM modifications.
type Tokens []Token

// Write appends a write token.
func (t *Tokens) Write(offset uint32, data []byte) {
	*t = append(*t, Token{Type: TokenWrite, Offset: offset, Data: append([]byte(nil), data...)})
}

// Binary encodes the tokens as a little-endian u32 count followed by, per
// token, the type byte, the u32 offset, the u32 data length and the data.
func (t Tokens) Binary() ([]byte, error) {
	if uint64(len(t)) > math.MaxUint32 {
		return nil, errors.New("patch: too many tokens")
	}
	out := binary.LittleEndian.AppendUint32(nil, uint32(len(t)))
	for i, tok := range t {
		if tok.Type != TokenWrite {
			return nil, fmt.Errorf("patch: token %d: unsupported type %d", i, tok.Type)
		}
		if uint64(len(tok.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("patch: token %d: data too large", i)
		}
		out = append(out, byte(tok.Type))
		out = binary.LittleEndian.AppendUint32(out, tok.Offset)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(tok.Data)))
		out = append(out, tok.Data...)
	}
	return out, nil
}

// Step is one entry of the manifest's procedure.
type Step struct {
	Name string
	Args []string
}

// MarshalJSON encodes a step as the [name, [args...]] pair the client expects.
func (s Step) MarshalJSON() ([]byte, error) {
	args := s.Args
	if args == nil {
		args = []string{}
	}
	return json.Marshal([]any{s.Name, args})
}

// Manifest is the archipelago.json document.
type Manifest struct {
	Game              string `json:"game"`
	Player            int    `json:"player"`
	PlayerName        string `json:"player_name"`
	BaseChecksum      string `json:"base_checksum"`
	PatchFileEnding   string `json:"patch_file_ending"`
	ResultFileEnding  string `json:"result_file_ending"`
	Procedure         []Step `json:"procedure"`
	Version           int    `json:"version"`
	CompatibleVersion int    `json:"compatible_version"`
}

// NewManifest returns the manifest for one player.
func NewManifest(player int, playerName string) Manifest {
	return Manifest{
		Game:             Game,
		Player:           player,
		PlayerName:       playerName,
		BaseChecksum:     BaseChecksum,
		PatchFileEnding:  FileEnding,
		ResultFileEnding: ResultFileEnding,
		Procedure: []Step{
			{Name: "apply_tokens", Args: []string{TokenFile}},
		},
		Version:           ContainerVersion,
		CompatibleVersion: ContainerVersion,
	}
}

// Write writes the container to w.
func Write(w io.Writer, m Manifest, tokens Tokens) error {
	bin, err := tokens.Binary()
	if err != nil {
		return err
	}
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("patch: encode manifest: %w", err)
	}

	zw := zip.NewWriter(w)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{ManifestFile, manifest},
		{TokenFile, bin},
	} {
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("patch: create %s: %w", f.name, err)
		}
		if _, err := fw.Write(f.data); err != nil {
			return fmt.Errorf("patch: write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("patch: close archive: %w", err)
	}
	return nil
}

// Read opens a container produced by [Write].
func Read(r io.ReaderAt, size int64) (Manifest, []byte, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Manifest{}, nil, fmt.Errorf("patch: open archive: %w", err)
	}
	var (
		m        Manifest
		tokens   []byte
		haveMeta bool
	)
	for _, f := range zr.File {
		switch f.Name {
		case ManifestFile:
			raw, err := readFile(f)
			if err != nil {
				return Manifest{}, nil, err
			}
			var doc struct {
				Manifest
				Procedure json.RawMessage `json:"procedure"`
			}
			if err := json.Unmarshal(raw, &doc); err != nil {
				return Manifest{}, nil, fmt.Errorf("patch: decode manifest: %w", err)
			}
			m = doc.Manifest
			haveMeta = true
		case TokenFile:
			if tokens, err = readFile(f); err != nil {
				return Manifest{}, nil, err
			}
		}
	}
	if !haveMeta {
		return Manifest{}, nil, fmt.Errorf("patch: archive has no %s", ManifestFile)
	}
	return m, tokens, nil
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("patch: open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("patch: read %s: %w", f.Name, err)
	}
	return data, nil
}
