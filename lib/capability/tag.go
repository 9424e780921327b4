package capability

import "fmt"

// APIVersion is the protocol version this package speaks.
const APIVersion = 1

// Tag identifies the meaning of a vector entry. Values are part of the
// binary contract and never change; new tags are only ever appended.
type Tag int32

const (
	Null Tag = iota
	TagAPIVersion
	TagGoldVersion
	TagLinkerOutput
	TagOption
	TagRegisterClaimFileHook
	TagRegisterAllSymbolsReadHook
	TagRegisterCleanupHook
	TagAddSymbols
	TagGetSymbols
	TagAddInputFile
	TagMessage
	TagGetInputFile
	TagReleaseInputFile
	TagAddInputLibrary
	TagOutputName
	TagSetExtraLibraryPath
	TagGNULDVersion
)

var tagNames = [...]string{
	Null:                          "NULL",
	TagAPIVersion:                 "API_VERSION",
	TagGoldVersion:                "GOLD_VERSION",
	TagLinkerOutput:               "LINKER_OUTPUT",
	TagOption:                     "OPTION",
	TagRegisterClaimFileHook:      "REGISTER_CLAIM_FILE_HOOK",
	TagRegisterAllSymbolsReadHook: "REGISTER_ALL_SYMBOLS_READ_HOOK",
	TagRegisterCleanupHook:        "REGISTER_CLEANUP_HOOK",
	TagAddSymbols:                 "ADD_SYMBOLS",
	TagGetSymbols:                 "GET_SYMBOLS",
	TagAddInputFile:               "ADD_INPUT_FILE",
	TagMessage:                    "MESSAGE",
	TagGetInputFile:               "GET_INPUT_FILE",
	TagReleaseInputFile:           "RELEASE_INPUT_FILE",
	TagAddInputLibrary:            "ADD_INPUT_LIBRARY",
	TagOutputName:                 "OUTPUT_NAME",
	TagSetExtraLibraryPath:        "SET_EXTRA_LIBRARY_PATH",
	TagGNULDVersion:               "GNU_LD_VERSION",
}

// String returns the tag's wire name.
func (t Tag) String() string {
	if t.Known() {
		return tagNames[t]
	}
	return fmt.Sprintf("TAG(%d)", int32(t))
}

// Known reports whether this package understands t.
func (t Tag) Known() bool {
	return t >= 0 && int(t) < len(tagNames)
}

// tagSince is the API version that introduced each tag. Everything in the
// baseline protocol is version 1.
func tagSince(t Tag) int {
	if t.Known() {
		return 1
	}
	return 0
}

// Kind is the payload variant carried by an entry.
type Kind uint8

const (
	KindInt Kind = iota
	KindString
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// kindOf returns the payload kind a known tag must carry.
func kindOf(t Tag) Kind {
	switch t {
	case Null, TagAPIVersion, TagGoldVersion, TagLinkerOutput, TagGNULDVersion:
		return KindInt
	case TagOption, TagOutputName:
		return KindString
	default:
		return KindFunc
	}
}

// OutputType is the kind of artifact the host is producing.
type OutputType int32

const (
	OutputRel OutputType = iota
	OutputExec
	OutputDyn
)

func (o OutputType) String() string {
	switch o {
	case OutputRel:
		return "rel"
	case OutputExec:
		return "exec"
	case OutputDyn:
		return "dyn"
	default:
		return fmt.Sprintf("output(%d)", int32(o))
	}
}

// ParseOutputType parses the names produced by OutputType.String.
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "rel", "relocatable":
		return OutputRel, nil
	case "exec", "executable":
		return OutputExec, nil
	case "dyn", "shared":
		return OutputDyn, nil
	}
	return 0, fmt.Errorf("unknown output type %q", s)
}
