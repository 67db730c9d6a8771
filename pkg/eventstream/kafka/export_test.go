package kafka

type MessageWriter = messageWriter

func NewWithWriter(w MessageWriter, cfg Config) *Publisher {
	return newPublisher(w, cfg)
}
