package binding

import (
	"fmt"

	"github.com/cryguy/scriptworker/internal/exchange"
)

// hostShared backs the SharedList proxy methods. args is the wire form of
// the argument array; the result is returned in wire form.
func (b *Bridge) hostShared(listID int, op string, args string) (string, error) {
	l := b.resolve(uint64(listID))
	if l == nil {
		return "", fmt.Errorf("unknown shared list %d", listID)
	}
	argv, err := exchange.DecodeWire(args, b.resolve)
	if err != nil {
		return "", err
	}
	index := func(i int) int { return int(argv.Index(i).Number()) }

	result := exchange.Null()
	switch op {
	case "count":
		result = exchange.Number(float64(l.Count()))
	case "get":
		result = l.Get(index(0))
	case "set":
		if !l.Set(index(0), argv.Index(1)) {
			return "", fmt.Errorf("set: index %d out of range", index(0))
		}
	case "append":
		l.Append(argv.Index(0))
	case "insert":
		if !l.Insert(index(0), argv.Index(1)) {
			return "", fmt.Errorf("insert: index %d out of range", index(0))
		}
	case "remove":
		if !l.Remove(index(0), index(1)) {
			return "", fmt.Errorf("remove: range %d+%d out of bounds", index(0), index(1))
		}
	case "clear":
		l.Clear()
	default:
		return "", fmt.Errorf("unsupported shared list operation %q", op)
	}
	return exchange.EncodeWire(result, b.bind)
}
