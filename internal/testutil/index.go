package testutil

import (
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/arx/internal/container"
	"github.com/meigma/arx/internal/fb"
)

// PackData is one encoded pack ready to be laid out in a container.
type PackData struct {
	ID          uint16
	Compression container.Compression
	Bytes       []byte
	Blobs       []container.BlobLoc
	Digest      string
	offset      uint64
}

// encodeIndex serializes records and packs to FlatBuffers format.
func encodeIndex(records []container.Record, rootFirst, rootCount uint32, packs []PackData) []byte {
	builder := flatbuffers.NewBuilder(1024)

	// FlatBuffers builds children before parents, so walk in reverse.
	entryOffsets := make([]flatbuffers.UOffsetT, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		pathOffset := builder.CreateString(r.Path)
		var targetOffset flatbuffers.UOffsetT
		if r.Kind == container.KindLink {
			targetOffset = builder.CreateString(r.Target)
		}

		fb.EntryStart(builder)
		fb.EntryAddKind(builder, r.Kind)
		fb.EntryAddPath(builder, pathOffset)
		fb.EntryAddParent(builder, r.Parent)
		fb.EntryAddOwner(builder, r.Owner)
		fb.EntryAddGroup(builder, r.Group)
		fb.EntryAddRights(builder, r.Rights)
		fb.EntryAddMtime(builder, r.Mtime)
		switch r.Kind {
		case container.KindFile:
			fb.EntryAddSize(builder, r.Size)
			fb.EntryAddPack(builder, r.Content.Pack)
			fb.EntryAddBlob(builder, r.Content.Blob)
		case container.KindLink:
			fb.EntryAddTarget(builder, targetOffset)
		case container.KindDir:
			fb.EntryAddFirstChild(builder, r.FirstChild)
			fb.EntryAddChildCount(builder, r.ChildCount)
		}
		entryOffsets[i] = fb.EntryEnd(builder)
	}
	fb.IndexStartEntriesVector(builder, len(records))
	for i := len(entryOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(entryOffsets[i])
	}
	entriesOffset := builder.EndVector(len(records))

	packOffsets := make([]flatbuffers.UOffsetT, len(packs))
	for i := len(packs) - 1; i >= 0; i-- {
		p := packs[i]
		var digestOffset flatbuffers.UOffsetT
		if p.Digest != "" {
			digestOffset = builder.CreateString(p.Digest)
		}
		fb.PackStartBlobsVector(builder, len(p.Blobs))
		for j := len(p.Blobs) - 1; j >= 0; j-- {
			fb.CreateBlobLoc(builder, p.Blobs[j].Offset, p.Blobs[j].Size)
		}
		blobsOffset := builder.EndVector(len(p.Blobs))

		fb.PackStart(builder)
		fb.PackAddId(builder, p.ID)
		fb.PackAddOffset(builder, p.offset)
		fb.PackAddSize(builder, uint64(len(p.Bytes)))
		fb.PackAddCompression(builder, p.Compression)
		if digestOffset != 0 {
			fb.PackAddDigest(builder, digestOffset)
		}
		fb.PackAddBlobs(builder, blobsOffset)
		packOffsets[i] = fb.PackEnd(builder)
	}
	fb.IndexStartPacksVector(builder, len(packs))
	for i := len(packOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(packOffsets[i])
	}
	packsOffset := builder.EndVector(len(packs))

	fb.IndexStart(builder)
	fb.IndexAddVersion(builder, container.IndexVersion)
	fb.IndexAddRootFirst(builder, rootFirst)
	fb.IndexAddRootCount(builder, rootCount)
	fb.IndexAddEntries(builder, entriesOffset)
	fb.IndexAddPacks(builder, packsOffset)
	fb.FinishIndexBuffer(builder, fb.IndexEnd(builder))
	return builder.FinishedBytes()
}
