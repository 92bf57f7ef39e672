package serialization

import (
	"time"

	"github.com/densenet-ml/densenet/internal/nn"
)

// Format constants.
const (
	MagicBytes      = "DNET"
	FormatVersion   = 1
	HeaderAlignment = 64   // Data section starts on a 64-byte boundary
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
	ValueSize       = 8    // Bytes per stored float64
)

// Flags for the .dnet format.
const (
	FlagHasMetadata   uint32 = 1 << 0 // bit 0: custom metadata included
	FlagHasCheckpoint uint32 = 1 << 1 // bit 1: checkpoint metadata and optimizer state included
)

// Well-known metadata keys.
const (
	// MetadataNormalization records the pixel normalization used for the
	// training data ("grayscale" or "binarized").
	MetadataNormalization = "normalization"
	// MetadataDataset names the training data source.
	MetadataDataset = "dataset"
)

// Header represents the JSON header in a .dnet file.
type Header struct {
	FormatVersion int               `json:"format_version"`       // Version of the .dnet format
	ModelID       string            `json:"model_id"`             // Random UUID stamped at save time
	CreatedAt     time.Time         `json:"created_at"`           // When the file was created
	Loss          string            `json:"loss"`                 // Loss tag ("mse", "cross_entropy")
	Layers        []LayerMeta       `json:"layers"`               // Architecture, input to output
	ParamCount    int64             `json:"param_count"`          // Number of stored parameter values
	Metadata      map[string]string `json:"metadata"`             // Custom metadata
	Checkpoint    *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (checkpoints only)
}

// LayerMeta describes one dense layer.
type LayerMeta struct {
	InputWidth  int    `json:"input_width"`
	OutputWidth int    `json:"output_width"`
	Activation  string `json:"activation"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int                `json:"epoch"`                      // Last completed epoch (1-based)
	Step            int64              `json:"step"`                       // Parameter updates applied so far
	Loss            float64            `json:"loss"`                       // Mean training loss of the epoch
	Accuracy        float64            `json:"accuracy"`                   // Training accuracy of the epoch
	OptimizerType   string             `json:"optimizer_type"`             // "sgd", "adam"
	LearningRate    float64            `json:"learning_rate"`              // Learning rate at save time
	OptimizerConfig map[string]float64 `json:"optimizer_config,omitempty"` // Other optimizer hyperparameters
	OptimizerState  []StateMeta        `json:"optimizer_state,omitempty"`  // Buffers following the parameters
}

// StateMeta describes one optimizer buffer in the data section.
type StateMeta struct {
	Name   string `json:"name"`
	Length int64  `json:"length"` // Number of float64 values
}

// Architecture converts the header's layer list into an nn.Architecture.
//
// Unknown tags are reported as ValidationErrors.
func (h *Header) Architecture() (nn.Architecture, error) {
	loss, err := nn.ParseLoss(h.Loss)
	if err != nil {
		return nn.Architecture{}, &ValidationError{Type: "unknown_loss", Layer: -1, Details: err.Error()}
	}

	arch := nn.Architecture{Loss: loss, Layers: make([]nn.LayerSpec, len(h.Layers))}
	for i, l := range h.Layers {
		act, err := nn.ParseActivation(l.Activation)
		if err != nil {
			return nn.Architecture{}, &ValidationError{Type: "unknown_activation", Layer: i, Details: err.Error()}
		}
		arch.Layers[i] = nn.LayerSpec{InputWidth: l.InputWidth, OutputWidth: l.OutputWidth, Activation: act}
	}
	return arch, nil
}

// layerMetas describes arch in header form.
func layerMetas(arch nn.Architecture) []LayerMeta {
	out := make([]LayerMeta, len(arch.Layers))
	for i, l := range arch.Layers {
		out[i] = LayerMeta{InputWidth: l.InputWidth, OutputWidth: l.OutputWidth, Activation: l.Activation.String()}
	}
	return out
}

// stateCount returns the number of float64 values the optimizer state occupies.
func (h *Header) stateCount() int64 {
	if h.Checkpoint == nil {
		return 0
	}
	var n int64
	for _, s := range h.Checkpoint.OptimizerState {
		n += s.Length
	}
	return n
}
