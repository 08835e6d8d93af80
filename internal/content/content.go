// Package content holds the read-only course tree: ordered lessons, each an
// ordered list of blocks, plus the typed payloads of quiz and sequence blocks.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a course, lesson, block or option identifier. Content services
// emit both numeric and string ids, so ID accepts either on decode.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Int returns the numeric value of id, or false when it is not an integer.
func (id ID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// BlockType enumerates the kinds of block a lesson can contain.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockVideo      BlockType = "video"
	BlockAudio      BlockType = "audio"
	BlockImage      BlockType = "image"
	BlockQuiz       BlockType = "quiz"
	BlockSequence   BlockType = "sequence"
	BlockFileUpload BlockType = "file-upload"
)

// Interactive reports whether the block expects an answer.
func (t BlockType) Interactive() bool {
	return t == BlockQuiz || t == BlockSequence
}

type Course struct {
	ID      ID       `json:"id"`
	Title   string   `json:"title"`
	Version string   `json:"version,omitempty"`
	Lessons []Lesson `json:"lessons"`
}

type Lesson struct {
	ID     ID      `json:"id"`
	Title  string  `json:"title"`
	Blocks []Block `json:"blocks"`
}

type Block struct {
	ID         ID              `json:"id"`
	Type       BlockType       `json:"type"`
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content,omitempty"`
	OrderIndex int             `json:"order_index"`
}

// Position addresses a block by lesson and block index.
type Position struct {
	Lesson int `json:"lessonIndex"`
	Block  int `json:"blockIndex"`
}

// Less orders positions lexicographically.
func (p Position) Less(o Position) bool {
	if p.Lesson != o.Lesson {
		return p.Lesson < o.Lesson
	}
	return p.Block < o.Block
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Lesson, p.Block)
}

// Quiz decodes the block's quiz payload. It returns nil for non-quiz blocks.
func (b *Block) Quiz() (*Quiz, error) {
	if b.Type != BlockQuiz {
		return nil, nil
	}
	var q Quiz
	if len(b.Content) == 0 {
		return &q, nil
	}
	if err := json.Unmarshal(b.Content, &q); err != nil {
		return nil, fmt.Errorf("block %s: decode quiz: %w", b.ID, err)
	}
	return &q, nil
}

// Sequence decodes the block's ordering payload. It returns nil for other
// block types.
func (b *Block) Sequence() (*Sequence, error) {
	if b.Type != BlockSequence {
		return nil, nil
	}
	var s Sequence
	if len(b.Content) == 0 {
		return &s, nil
	}
	if err := json.Unmarshal(b.Content, &s); err != nil {
		return nil, fmt.Errorf("block %s: decode sequence: %w", b.ID, err)
	}
	return &s, nil
}

// LessonCount returns the number of lessons.
func (c *Course) LessonCount() int { return len(c.Lessons) }

// BlockCount returns the number of blocks in lesson i, or 0 when i is out
// of range.
func (c *Course) BlockCount(lesson int) int {
	if lesson < 0 || lesson >= len(c.Lessons) {
		return 0
	}
	return len(c.Lessons[lesson].Blocks)
}

// Valid reports whether pos addresses an existing block.
func (c *Course) Valid(pos Position) bool {
	return pos.Block >= 0 && pos.Block < c.BlockCount(pos.Lesson)
}

// BlockAt returns the block at pos, or nil.
func (c *Course) BlockAt(pos Position) *Block {
	if !c.Valid(pos) {
		return nil
	}
	return &c.Lessons[pos.Lesson].Blocks[pos.Block]
}

// LessonAt returns lesson i, or nil.
func (c *Course) LessonAt(i int) *Lesson {
	if i < 0 || i >= len(c.Lessons) {
		return nil
	}
	return &c.Lessons[i]
}

// First returns the position of the first block.
func (c *Course) First() Position { return Position{} }

// Last returns the position of the final block of the final lesson.
func (c *Course) Last() Position {
	l := len(c.Lessons) - 1
	if l < 0 {
		return Position{}
	}
	return Position{Lesson: l, Block: c.BlockCount(l) - 1}
}

// IsLast reports whether pos is the terminal block of the course.
func (c *Course) IsLast(pos Position) bool { return pos == c.Last() }

// FindBlock searches every lesson in order for a block whose id or title
// equals target and returns the first match.
func (c *Course) FindBlock(target string) (Position, bool) {
	if target == "" {
		return Position{}, false
	}
	for li, lesson := range c.Lessons {
		for bi, block := range lesson.Blocks {
			if string(block.ID) == target || block.Title == target {
				return Position{Lesson: li, Block: bi}, true
			}
		}
	}
	return Position{}, false
}

// BlockByID returns the block with the given id and its position.
func (c *Course) BlockByID(id ID) (*Block, Position, bool) {
	for li := range c.Lessons {
		for bi := range c.Lessons[li].Blocks {
			if c.Lessons[li].Blocks[bi].ID == id {
				return &c.Lessons[li].Blocks[bi], Position{Lesson: li, Block: bi}, true
			}
		}
	}
	return nil, Position{}, false
}

// TotalBlocks counts blocks across all lessons.
func (c *Course) TotalBlocks() int {
	n := 0
	for _, l := range c.Lessons {
		n += len(l.Blocks)
	}
	return n
}
