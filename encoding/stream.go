package encoding

type Stream interface {
	BlockSize() int
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	ReadString() (string, error)
	ReadStream() (Stream, error)
	Write([]byte) (int, error)
	WriteStream(int) (Stream, error)
}
