// Package serialization provides the .dnet format for saving and loading
// trained networks.
//
//	Format Structure:
//	  0x00 [4 bytes: Magic "DNET"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: Reserved]
//	  0x10 [8 bytes: Header Size (uint64 LE)]
//	  0x18 [8 bytes: Data Size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON architecture and metadata]
//	       [Padding to a 64-byte boundary]
//	       [Data: float64 LE parameters, then optimizer state for checkpoints]
//
// Parameters are stored layer by layer, each layer's weights (row-major,
// [out, in]) before its bias, so a decoded network is bit-identical to the
// one that was encoded.
//
// Example usage:
//
//	// Save a model
//	if err := serialization.SaveFile("model.dnet", net); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load a model
//	m, err := serialization.LoadFile("model.dnet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	probs, err := m.Network.Predict(input)
package serialization
