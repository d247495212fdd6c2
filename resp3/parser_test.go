package resp3_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lumalabs/redigo3/resp3"
)

// feed drives Consume to completion for exactly one top-level reply,
// splitting the input into chunks of the given sizes to exercise arbitrary
// fragmentation. Remaining input (the start of the next reply, if any) is
// returned.
func feed(p *resp3.Parser, data []byte, chunkSizes []int, adapter resp3.Adapter) []byte {
	var buf []byte
	ci := 0
	for !p.Done() {
		if ci < len(chunkSizes) {
			n := chunkSizes[ci]
			ci++
			if n > len(data) {
				n = len(data)
			}
			buf = append(buf, data[:n]...)
			data = data[n:]
		} else {
			buf = append(buf, data...)
			data = nil
		}

		for {
			consumed, err := p.Consume(buf, adapter)
			Expect(err).NotTo(HaveOccurred())
			if consumed == 0 {
				break
			}
			buf = buf[consumed:]
			if p.Done() {
				break
			}
		}
	}
	return append(buf, data...)
}

var _ = Describe("Parser", func() {
	Describe("Consume", func() {
		It("decodes the literal nested array frame from the spec's end-to-end scenario", func() {
			frame := []byte("*3\r\n$3\r\nfoo\r\n:42\r\n*2\r\n+a\r\n+b\r\n")

			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			rest := feed(p, frame, []int{len(frame)}, ta)

			Expect(rest).To(BeEmpty())
			Expect(ta.Nodes).To(HaveLen(6))

			depths := make([]int, len(ta.Nodes))
			types := make([]resp3.Type, len(ta.Nodes))
			for i, n := range ta.Nodes {
				depths[i] = n.Depth
				types[i] = n.Type
			}

			Expect(depths).To(Equal([]int{0, 1, 1, 1, 2, 2}))
			Expect(types).To(Equal([]resp3.Type{
				resp3.TypeArray,
				resp3.TypeBlobString,
				resp3.TypeNumber,
				resp3.TypeArray,
				resp3.TypeSimpleString,
				resp3.TypeSimpleString,
			}))
		})

		It("is insensitive to how the input is chunked", func() {
			frame := []byte("*3\r\n$3\r\nfoo\r\n:42\r\n*2\r\n+a\r\n+b\r\n")

			var refNodes []resp3.Node
			for _, chunking := range [][]int{
				{len(frame)},
				{1, 1, 1, 1, 1},
				{5, 7, 3, 100},
				{3},
			} {
				p := resp3.NewParser()
				ta := resp3.NewTreeAdapter()
				feed(p, append([]byte(nil), frame...), chunking, ta)

				if refNodes == nil {
					refNodes = ta.Nodes
					continue
				}
				Expect(ta.Nodes).To(Equal(refNodes))
			}
		})

		It("decodes a zero-length bulk string", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, []byte("$0\r\n\r\n"), nil, ta)

			Expect(ta.Nodes).To(HaveLen(1))
			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeBlobString))
			Expect(ta.Nodes[0].Data).To(BeEmpty())
		})

		It("decodes a null bulk string", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, []byte("$-1\r\n"), nil, ta)

			Expect(ta.Nodes).To(HaveLen(1))
			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeNull))
		})

		It("decodes the RESP3 null type", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, []byte("_\r\n"), nil, ta)

			Expect(ta.Nodes).To(HaveLen(1))
			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeNull))
		})

		It("decodes an empty array", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, []byte("*0\r\n"), nil, ta)

			Expect(ta.Nodes).To(HaveLen(1))
			Expect(ta.Nodes[0].AggregateSize).To(BeEquivalentTo(0))
		})

		It("decodes bulk payloads containing a literal CRLF", func() {
			payload := "line1\r\nline2"
			frame := []byte("$" + itoa(len(payload)) + "\r\n" + payload + "\r\n")

			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, frame, []int{3, 5, 100}, ta)

			Expect(ta.Nodes).To(HaveLen(1))
			Expect(string(ta.Nodes[0].Data)).To(Equal(payload))
		})

		It("decodes deeply nested aggregates", func() {
			const depth = 32

			var frame []byte
			for i := 0; i < depth; i++ {
				frame = append(frame, []byte("*1\r\n")...)
			}
			frame = append(frame, []byte("+leaf\r\n")...)

			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, frame, nil, ta)

			Expect(ta.Nodes).To(HaveLen(depth + 1))
			Expect(ta.Nodes[depth].Depth).To(Equal(depth))
			Expect(ta.Nodes[depth].Type).To(Equal(resp3.TypeSimpleString))
		})

		It("enforces MaxDepth when set", func() {
			frame := []byte("*1\r\n*1\r\n+leaf\r\n")

			p := resp3.NewParser()
			p.MaxDepth = 1
			ta := resp3.NewTreeAdapter()

			var lastErr error
			buf := frame
			for {
				consumed, err := p.Consume(buf, ta)
				if err != nil {
					lastErr = err
					break
				}
				if consumed == 0 {
					break
				}
				buf = buf[consumed:]
			}

			Expect(lastErr).To(MatchError(resp3.ErrMaxDepthExceeded))
		})

		It("reassembles a streamed string from multiple chunks", func() {
			frame := []byte("$?\r\n;4\r\nHell\r\n;1\r\no\r\n;0\r\n")

			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, frame, nil, ta)

			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeBlobString))
			Expect(ta.Nodes[0].AggregateSize).To(BeEquivalentTo(-1))

			var got string
			for _, n := range ta.Nodes[1:] {
				Expect(n.Type).To(Equal(resp3.TypeStreamedStrPart))
				got += string(n.Data)
			}
			Expect(got).To(Equal("Hello"))
		})

		It("delivers attribute frames without consuming the following reply", func() {
			frame := []byte("|1\r\n+key\r\n+val\r\n+actual-reply\r\n")

			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			rest := feed(p, frame, nil, ta)

			Expect(ta.Nodes).To(HaveLen(3))
			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeAttribute))
			Expect(string(rest)).To(Equal("+actual-reply\r\n"))
		})

		It("treats a push frame as an ordinary top-level reply", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()
			feed(p, []byte(">2\r\n+message\r\n+hello\r\n"), nil, ta)

			Expect(ta.Nodes[0].Type).To(Equal(resp3.TypePush))
		})

		It("fails with ErrProtocolViolation on an unknown type byte", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()

			_, err := p.Consume([]byte("@nope\r\n"), ta)
			Expect(err).To(MatchError(resp3.ErrProtocolViolation))
		})

		It("needs more data rather than erroring on a partial header", func() {
			p := resp3.NewParser()
			ta := resp3.NewTreeAdapter()

			n, err := p.Consume([]byte("+incom"), ta)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})
	})
})

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
