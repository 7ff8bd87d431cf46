package analysis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/aristath/lottoscan/internal/blocks"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/vmihailenco/msgpack/v5"
)

// recordDTO is the wire form of a Record. Big integers travel as decimal
// strings so every backend stores them losslessly.
type recordDTO struct {
	Blocks    []blockDTO `json:"blocks" msgpack:"blocks"`
	Ranked    []entryDTO `json:"ranked" msgpack:"ranked"`
	UpdatedAt time.Time  `json:"updated_at" msgpack:"updated_at"`
	UpdatedBy string     `json:"updated_by,omitempty" msgpack:"updated_by,omitempty"`
}

type blockDTO struct {
	Start  string `json:"start" msgpack:"start"`
	End    string `json:"end" msgpack:"end"`
	Cursor string `json:"cursor,omitempty" msgpack:"cursor,omitempty"`
}

type entryDTO struct {
	Subset []int          `json:"subset" msgpack:"subset"`
	Score  map[string]int `json:"score" msgpack:"score"`
}

func toDTO(r *Record) recordDTO {
	dto := recordDTO{
		Blocks:    make([]blockDTO, len(r.Blocks)),
		Ranked:    make([]entryDTO, len(r.Ranked)),
		UpdatedAt: r.UpdatedAt,
		UpdatedBy: r.UpdatedBy,
	}
	for i, b := range r.Blocks {
		dto.Blocks[i] = blockDTO{Start: b.Start.String(), End: b.End.String()}
		if b.Cursor != nil {
			dto.Blocks[i].Cursor = b.Cursor.String()
		}
	}
	for i, e := range r.Ranked {
		score := make(map[string]int, len(e.Score))
		for t, hits := range e.Score {
			score[t.String()] = hits
		}
		dto.Ranked[i] = entryDTO{Subset: e.Subset, Score: score}
	}
	return dto
}

func fromDTO(dto recordDTO) (*Record, error) {
	r := &Record{
		Blocks:    make([]*blocks.Block, len(dto.Blocks)),
		Ranked:    make([]ranking.Entry, len(dto.Ranked)),
		UpdatedAt: dto.UpdatedAt,
		UpdatedBy: dto.UpdatedBy,
	}
	for i, b := range dto.Blocks {
		start, err := parseBig(b.Start)
		if err != nil {
			return nil, fmt.Errorf("block %d start: %w", i, err)
		}
		end, err := parseBig(b.End)
		if err != nil {
			return nil, fmt.Errorf("block %d end: %w", i, err)
		}
		block := blocks.New(start, end)
		if b.Cursor != "" {
			cursor, err := parseBig(b.Cursor)
			if err != nil {
				return nil, fmt.Errorf("block %d cursor: %w", i, err)
			}
			if err := block.Advance(cursor); err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}
		}
		r.Blocks[i] = block
	}
	for i, e := range dto.Ranked {
		score := make(ranking.Score, len(e.Score))
		for k, hits := range e.Score {
			t, err := ranking.ParseTier(k)
			if err != nil {
				return nil, fmt.Errorf("ranked entry %d: %w", i, err)
			}
			score[t] = hits
		}
		r.Ranked[i] = ranking.Entry{Subset: e.Subset, Score: score}
	}
	return r, nil
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// EncodeJSON renders a record as indented JSON.
func EncodeJSON(r *Record) ([]byte, error) {
	data, err := json.MarshalIndent(toDTO(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a record written by EncodeJSON.
func DecodeJSON(data []byte) (*Record, error) {
	var dto recordDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return fromDTO(dto)
}

// EncodeMsgpack renders a record in its compact binary form.
func EncodeMsgpack(r *Record) ([]byte, error) {
	data, err := msgpack.Marshal(toDTO(r))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

// DecodeMsgpack parses a record written by EncodeMsgpack.
func DecodeMsgpack(data []byte) (*Record, error) {
	var dto recordDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return fromDTO(dto)
}
