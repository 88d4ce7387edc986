package itfile

// Module is a parsed IT-style module.
// This is a raw module format that is not optimized for playback;
// the player compiles it into its own representation.
type Module struct {
	Name string

	// NumChannels is the number of logical channels the patterns address.
	NumChannels int

	// Orders lists pattern indices in the playback order.
	// OrderSkip entries are skipped, OrderEnd terminates the song.
	Orders []uint8

	// RestartOrder is the order index playback wraps to.
	RestartOrder int

	Patterns []Pattern

	// Instruments and Samples are referenced with 1-based indices
	// from the pattern cells and instrument keymaps.
	Instruments []Instrument
	Samples     []Sample

	// InitialSpeed is a number of ticks per row.
	// A zero value means 6.
	InitialSpeed int

	// InitialTempo is the tick rate control value (ticks per second is tempo*2/5).
	// A zero value means 125.
	InitialTempo int

	// GlobalVolume is in [0, 128].
	GlobalVolume int

	// ChannelPanning and ChannelVolume hold initial per-channel settings.
	// Missing entries default to center panning (32) and full volume (64).
	ChannelPanning []uint8
	ChannelVolume  []uint8
}

const (
	OrderSkip uint8 = 254
	OrderEnd  uint8 = 255
)

type Pattern struct {
	Rows []Row
}

// Row is a sparse set of cells.
// Every channel appears at most once.
type Row struct {
	Cells []Cell
}

type Cell struct {
	Channel uint8

	Mask CellMask

	Note       uint8
	Instrument uint8
	Volume     uint8
	Command    uint8
	Param      uint8
}

type CellMask uint8

const (
	CellNote CellMask = 1 << iota
	CellInstrument
	CellVolume
	CellEffect
)

func (m CellMask) Has(bits CellMask) bool { return m&bits == bits }

// IsEmpty reports whether the cell carries nothing at all.
func (c *Cell) IsEmpty() bool { return c.Mask == 0 }

const (
	// NumNotes is the size of the playable note range (C-0..B-9).
	NumNotes = 120

	NoteFade uint8 = 253
	NoteCut  uint8 = 254
	NoteOff  uint8 = 255
)

// Effect command bytes.
// The letters follow the classic IT notation.
const (
	CmdNone uint8 = iota
	CmdA
	CmdB
	CmdC
	CmdD
	CmdE
	CmdF
	CmdG
	CmdH
	CmdI
	CmdJ
	CmdK
	CmdL
	CmdM
	CmdN
	CmdO
	CmdP
	CmdQ
	CmdR
	CmdS
	CmdT
	CmdU
	CmdV
	CmdW
	CmdX
	CmdY
	CmdZ

	// CmdEnvelopePosition moves the channel's envelope cursors.
	// It's an extended command that has no letter in the classic set.
	CmdEnvelopePosition
)

type Instrument struct {
	Name string

	// Keymap maps every note to a (note, sample) pair.
	// Sample is a 1-based index into Module.Samples; 0 means "no sample".
	Keymap [NumNotes]KeymapEntry

	VolumeEnvelope  Envelope
	PanningEnvelope Envelope
	PitchEnvelope   Envelope

	NNA NewNoteAction
	DCT DuplicateCheckType
	DCA DuplicateCheckAction

	// FadeOut is subtracted from a 1024-based fade level every tick
	// after the note is released.
	FadeOut int

	// GlobalVolume is in [0, 128].
	GlobalVolume int

	DefaultPan        uint8
	DefaultPanEnabled bool

	// RandomVolume is a volume variation in percents [0, 100].
	RandomVolume uint8

	// RandomPan is a panning variation in [0, 64].
	RandomPan uint8
}

type KeymapEntry struct {
	Note   uint8
	Sample uint8
}

// MapAllNotes assigns the sample to every note of the keymap
// without transposition.
func (inst *Instrument) MapAllNotes(sample uint8) {
	for i := range inst.Keymap {
		inst.Keymap[i] = KeymapEntry{Note: uint8(i), Sample: sample}
	}
}

type NewNoteAction uint8

const (
	NNACut NewNoteAction = iota
	NNAContinue
	NNAOff
	NNAFade
)

type DuplicateCheckType uint8

const (
	DCTNone DuplicateCheckType = iota
	DCTNote
	DCTSample
	DCTInstrument
)

type DuplicateCheckAction uint8

const (
	DCACut DuplicateCheckAction = iota
	DCAOff
	DCAFade
)

type Envelope struct {
	Nodes []EnvelopeNode

	Flags EnvelopeFlags

	// Loop and sustain boundaries are node indices.
	LoopStart    uint8
	LoopEnd      uint8
	SustainStart uint8
	SustainEnd   uint8
}

type EnvelopeNode struct {
	Tick  uint16
	Value int8
}

type EnvelopeFlags uint8

const (
	EnvelopeOn EnvelopeFlags = 1 << iota
	EnvelopeLoop
	EnvelopeSustain
	EnvelopeCarry
	EnvelopeFilter
)

func (f EnvelopeFlags) IsOn() bool { return f&EnvelopeOn != 0 }

func (f EnvelopeFlags) LoopEnabled() bool { return f&EnvelopeLoop != 0 }

func (f EnvelopeFlags) SustainEnabled() bool { return f&EnvelopeSustain != 0 }

func (f EnvelopeFlags) CarryEnabled() bool { return f&EnvelopeCarry != 0 }

func (f EnvelopeFlags) IsFilter() bool { return f&EnvelopeFilter != 0 }

// Enabled reports whether the envelope has any effect on playback.
func (e *Envelope) Enabled() bool {
	return e.Flags.IsOn() && len(e.Nodes) != 0
}

type Sample struct {
	Name string

	// Handle is a SampleStore key for the PCM data.
	Handle int

	// Length, LoopStart and LoopEnd are measured in frames.
	Length    int
	LoopStart int
	LoopEnd   int
	Loop      SampleLoopType

	Is16Bit bool

	// C5Speed is a playback frequency of the C-5 note.
	C5Speed int

	DefaultVolume uint8
	GlobalVolume  uint8

	DefaultPan        uint8
	DefaultPanEnabled bool
}

type SampleLoopType uint8

const (
	LoopNone SampleLoopType = iota
	LoopForward
	LoopPingPong
)

// HasLoop reports whether the sample loop is usable.
func (s *Sample) HasLoop() bool {
	return s.Loop != LoopNone && s.LoopEnd > s.LoopStart && s.LoopEnd <= s.Length
}
