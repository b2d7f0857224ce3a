package scriptworker

import (
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/exchange"
)

// Type aliases re-exporting internal types so callers can build values,
// name workers and plug in loaders without importing internal packages.

type WorkerID = core.WorkerID
type Location = core.Location
type SourceLoader = core.SourceLoader
type SourceLoaderFunc = core.SourceLoaderFunc
type JSRuntime = core.JSRuntime
type ScriptError = core.ScriptError

type Value = exchange.Value
type Kind = exchange.Kind
type Map = exchange.Map
type Regex = exchange.Regex
type SharedList = exchange.SharedList

// Value kinds.
const (
	KindNull       = exchange.KindNull
	KindBool       = exchange.KindBool
	KindNumber     = exchange.KindNumber
	KindString     = exchange.KindString
	KindDate       = exchange.KindDate
	KindRegex      = exchange.KindRegex
	KindList       = exchange.KindList
	KindMap        = exchange.KindMap
	KindSharedList = exchange.KindSharedList
)

var (
	ErrNotFound     = core.ErrNotFound
	ErrUnresolvable = core.ErrUnresolvable
)

// Value constructors re-exported from exchange.
var (
	Null          = exchange.Null
	Bool          = exchange.Bool
	Number        = exchange.Number
	String        = exchange.String
	Date          = exchange.Date
	RegExp        = exchange.RegExp
	List          = exchange.List
	MapOf         = exchange.MapOf
	NewMap        = exchange.NewMap
	Shared        = exchange.Shared
	NewSharedList = exchange.NewSharedList
	FromGo        = exchange.FromGo
	Equal         = exchange.Equal
)
