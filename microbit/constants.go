package microbit

const (
	KiB = 1024

	ChunkSize        = 128
	ChunkPayloadSize = 126 // Everything between the marker and the tail
	ChunkTailOffset  = ChunkSize - 1
	MaxChunks        = 252 // 256 minus the four marker values
	MaxFilenameSize  = 120

	ChunkFreed          = 0x00
	ChunkPersistentData = 0xFD
	ChunkFileStart      = 0xFE
	ChunkUnused         = 0xFF

	FlashSizeV1 = 256 * KiB
	FlashSizeV2 = 512 * KiB
	FsEndV1     = 256 * KiB
	FsEndV2     = 0x73000

	// Very old V1 builds appended a single main.py here instead of using the
	// chunk filesystem. If present, the filesystem must end before it.
	AppendedScriptAddress = 0x3E000
	AppendedScriptMagic   = "MP"

	MaxVersionLength = 256
)
