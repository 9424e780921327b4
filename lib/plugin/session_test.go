package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

var irSymbols = []symbol.Symbol{
	{Name: "main", Kind: symbol.Def},
	{Name: "helper", Kind: symbol.Def, Visibility: symbol.Hidden},
	{Name: "puts", Kind: symbol.Undef},
}

func newTestSession(t *testing.T, configure ...func(*SessionOptions)) (*Session, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/f1.ir", []byte("IR main helper"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/f2.o", []byte("\x7fELF"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/in/f3.ir", []byte("IR empty"), 0o644))

	opts := DefaultSessionOptions()
	opts.Fs = fs
	opts.OutputName = "a.out"
	for _, c := range configure {
		c(opts)
	}
	return NewSession(opts), fs
}

func irOnly(f handle.InputFile) bool {
	return strings.HasSuffix(f.Name, ".ir")
}

// rawBackend captures the decoded host set during Onload.
func rawBackend(setup func(set capability.Set) status.Status) Backend {
	return OnloadFunc(func(v capability.Vector) status.Status {
		set, err := capability.Decode(v)
		if err != nil {
			return status.Err
		}
		return setup(set)
	})
}

func TestSession_ScenarioA(t *testing.T) {
	resolver := symbol.NewGlobalResolver()
	resolver.AddNative(
		symbol.NativeSymbol{Name: "main", Kind: symbol.Undef, Origin: symbol.OriginRegular},
		symbol.NativeSymbol{Name: "puts", Kind: symbol.Def, Origin: symbol.OriginShared},
	)
	s, _ := newTestSession(t, func(o *SessionOptions) { o.Resolver = resolver })

	var (
		mod      *Module
		h1       handle.Handle
		resolved []symbol.Symbol
	)
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		mod = m
		if err := m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			if !irOnly(f) || f.Name != "/in/f1.ir" {
				return false, status.OK
			}
			h1 = f.Handle
			if err := m.AddSymbols(f.Handle, irSymbols[:2]); err != nil {
				return false, status.Err
			}
			if err := m.AddSymbols(f.Handle, irSymbols[2:]); err != nil {
				return false, status.Err
			}
			return true, status.OK
		}); err != nil {
			return err
		}
		return m.OnAllSymbolsRead(func() status.Status {
			var err error
			resolved, err = m.Resolutions(h1, irSymbols)
			if err != nil {
				return status.Err
			}
			return status.OK
		})
	})))

	h, claimed, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.True(t, claimed)
	assert.Equal(t, h1, h)

	h2, claimed, err := s.ClaimPath("/in/f2.o")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, handle.Invalid, h2)

	require.NoError(t, s.AllSymbolsRead())
	assert.Equal(t, PhaseSymbolsFinal, s.Phase())

	require.Len(t, resolved, 3)
	assert.Equal(t, symbol.PrevailingDef, resolved[0].Resolution)
	assert.Equal(t, symbol.PrevailingDefIRonly, resolved[1].Resolution)
	assert.Equal(t, symbol.ResolvedDyn, resolved[2].Resolution)

	assert.Equal(t, []handle.Handle{h1}, s.symbols.Handles())
	assert.Equal(t, []handle.Handle{h1}, mod.Claimed())

	owner, ok := s.Owner(h1)
	require.True(t, ok)
	assert.Equal(t, "ir", owner)

	require.NoError(t, s.Cleanup())
	assert.Equal(t, PhaseTerminated, s.Phase())
	assert.False(t, s.Failed())
}

func TestSession_ScenarioB_NoContribution(t *testing.T) {
	s, _ := newTestSession(t)

	var getErr error
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		if err := m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			return irOnly(f), status.OK
		}); err != nil {
			return err
		}
		return m.OnAllSymbolsRead(func() status.Status {
			for _, h := range m.Claimed() {
				_, getErr = m.Resolutions(h, irSymbols[:1])
			}
			return status.OK
		})
	})))

	_, claimed, err := s.ClaimPath("/in/f3.ir")
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, s.AllSymbolsRead())
	assert.True(t, errors.Is(getErr, status.ErrNoSyms))
	assert.False(t, s.Aborted(), "NO_SYMS is not escalated")
}

func TestSession_ScenarioC_DoubleRelease(t *testing.T) {
	s, _ := newTestSession(t)

	var (
		contents      []byte
		first, second error
		openErr       error
	)
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		if err := m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			return irOnly(f), status.OK
		}); err != nil {
			return err
		}
		return m.OnAllSymbolsRead(func() status.Status {
			f, release, err := m.OpenInput(m.Claimed()[0])
			if err != nil {
				openErr = err
				return status.Err
			}
			contents, _ = f.ReadContents()
			first = release()
			second = release()
			return status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.NoError(t, s.AllSymbolsRead())

	require.NoError(t, openErr)
	assert.Equal(t, "IR main helper", string(contents))
	assert.NoError(t, first)
	assert.True(t, errors.Is(second, status.ErrBadHandle))
}

func TestSession_NoSymsBeforeAllSymbolsRead(t *testing.T) {
	s, _ := newTestSession(t)

	var getErr error
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		return m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			if err := m.AddSymbols(f.Handle, irSymbols); err != nil {
				return false, status.Err
			}
			_, getErr = m.Resolutions(f.Handle, irSymbols)
			return true, status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	assert.True(t, errors.Is(getErr, status.ErrNoSyms))
}

func TestSession_IdempotentFetch(t *testing.T) {
	s, _ := newTestSession(t)

	var first, second []symbol.Symbol
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		if err := m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			if err := m.AddSymbols(f.Handle, irSymbols); err != nil {
				return false, status.Err
			}
			return true, status.OK
		}); err != nil {
			return err
		}
		return m.OnAllSymbolsRead(func() status.Status {
			h := m.Claimed()[0]
			first, _ = m.Resolutions(h, irSymbols)
			second, _ = m.Resolutions(h, irSymbols[:2])
			return status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.NoError(t, s.AllSymbolsRead())

	require.Len(t, first, 3)
	require.Len(t, second, 2)
	assert.Equal(t, first[:2], second)
	for _, sym := range first {
		assert.NotEqual(t, symbol.Unknown, sym.Resolution)
	}
}

func TestSession_UnclaimedContributionsDiscarded(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			set.AddSymbols(f.Handle, irSymbols)
			return false, status.OK
		})
	})))

	_, claimed, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, s.symbols.Handles())
	assert.Empty(t, s.Claimed())
}

func TestSession_FatalAborts(t *testing.T) {
	s, _ := newTestSession(t)

	cleaned := false
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		if err := m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			m.Fatalf("corrupt input %s", f.Name)
			return false, status.OK
		}); err != nil {
			return err
		}
		return m.OnCleanup(func() status.Status {
			cleaned = true
			return status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt input /in/f1.ir")
	assert.True(t, s.Aborted())
	assert.True(t, s.Failed())

	_, _, err = s.ClaimPath("/in/f3.ir")
	assert.Error(t, err)
	assert.Error(t, s.AllSymbolsRead())

	require.NoError(t, s.Cleanup())
	assert.True(t, cleaned)
	assert.Equal(t, PhaseTerminated, s.Phase())
}

func TestSession_ErrorMessageMarksFailed(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		return m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			m.Warnf("odd file %s", f.Name)
			m.Errorf("bad file %s", f.Name)
			return false, status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	assert.True(t, s.Failed())
	assert.False(t, s.Aborted())

	diags := s.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, message.Warning, diags[0].Level)
	assert.Equal(t, "bad file /in/f1.ir", diags[1].Text)
}

func TestSession_Reentrancy(t *testing.T) {
	s, _ := newTestSession(t)

	var inner error
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		return m.OnClaimFile(func(f handle.InputFile) (bool, status.Status) {
			inner = s.AllSymbolsRead()
			return false, status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.Error(t, inner)
	assert.Contains(t, inner.Error(), "reentrant")
	assert.Equal(t, PhaseClaiming, s.Phase())
}

func TestSession_HostOpsOutsideHandler(t *testing.T) {
	s, _ := newTestSession(t)

	var host capability.Set
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		host = set
		return status.OK
	})))

	assert.Equal(t, status.Err, host.AddSymbols(handle.Invalid, irSymbols))
	assert.Equal(t, status.Err, host.Message(message.Info, "late"))
	assert.Equal(t, status.Err, host.RegisterCleanup(func() status.Status { return status.OK }))
	assert.Empty(t, s.Diagnostics())
}

func TestSession_AddSymbolsRules(t *testing.T) {
	s, _ := newTestSession(t)

	var (
		badHandle status.Status
		late      status.Status
		claimedH  handle.Handle
	)
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			badHandle = set.AddSymbols(handle.Invalid, irSymbols)
			claimedH = f.Handle
			return true, set.AddSymbols(f.Handle, irSymbols)
		})
		set.RegisterAllSymbolsRead(func() status.Status {
			late = set.AddSymbols(claimedH, irSymbols)
			return status.OK
		})
		return status.OK
	})))

	_, claimed, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.AllSymbolsRead())

	assert.Equal(t, status.BadHandle, badHandle)
	assert.Equal(t, status.Err, late)

	syms, err := s.Symbols(claimedH)
	require.NoError(t, err)
	assert.Len(t, syms, 3)
}

func TestSession_ClaimPriority(t *testing.T) {
	s, _ := newTestSession(t)

	var firstCalls, secondCalls int
	require.NoError(t, s.Load("first", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			firstCalls++
			return irOnly(f), status.OK
		})
	})))
	require.NoError(t, s.Load("second", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			secondCalls++
			return true, status.OK
		})
	})))
	assert.Equal(t, []string{"first", "second"}, s.Backends())

	h1, claimed, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.True(t, claimed)
	h2, claimed, err := s.ClaimPath("/in/f2.o")
	require.NoError(t, err)
	require.True(t, claimed)

	assert.Equal(t, 2, firstCalls)
	assert.Equal(t, 1, secondCalls)

	owner, _ := s.Owner(h1)
	assert.Equal(t, "first", owner)
	owner, _ = s.Owner(h2)
	assert.Equal(t, "second", owner)
}

func TestSession_ReRegistrationOverwrites(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, _ := newTestSession(t, func(o *SessionOptions) { o.Logger = zap.New(core) })

	var calls []string
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		set.RegisterClaimFile(func(handle.InputFile) (bool, status.Status) {
			calls = append(calls, "old")
			return false, status.OK
		})
		return set.RegisterClaimFile(func(handle.InputFile) (bool, status.Status) {
			calls = append(calls, "new")
			return false, status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, calls)
	assert.Equal(t, 1, logs.FilterMessage("handler re-registered, previous registration replaced").Len())
}

func TestSession_PhaseOrdering(t *testing.T) {
	s, _ := newTestSession(t)

	_, _, err := s.ClaimPath("/in/f1.ir")
	assert.Error(t, err, "claim before any backend is loaded")

	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			return false, status.OK
		})
	})))
	_, _, err = s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)

	err = s.Load("late", rawBackend(func(capability.Set) status.Status { return status.OK }))
	assert.True(t, errors.Is(err, status.ErrFailed))

	require.NoError(t, s.AllSymbolsRead())
	assert.Error(t, s.AllSymbolsRead())

	require.NoError(t, s.Cleanup())
	assert.Error(t, s.Cleanup())
}

func TestSession_LoadFailure(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.Load("broken", rawBackend(func(capability.Set) status.Status { return status.Err }))
	require.Error(t, err)
	assert.Equal(t, status.Err, status.Of(err))
	assert.True(t, s.Failed())
	assert.Empty(t, s.Backends())
	assert.Equal(t, PhaseUnloaded, s.Phase())
}

func TestSession_ReplacementInputs(t *testing.T) {
	s, _ := newTestSession(t)

	var early status.Status
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			early = set.AddInputFile("/tmp/too-early.o")
			return true, status.OK
		})
		return set.RegisterAllSymbolsRead(func() status.Status {
			set.AddInputFile("/tmp/ltrans0.o")
			set.AddInputLibrary("m")
			set.SetExtraLibraryPath("/opt/lib")
			if set.AddInputFile("") != status.Err {
				return status.Err
			}
			return status.OK
		})
	})))

	_, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.NoError(t, s.AllSymbolsRead())

	assert.Equal(t, status.Err, early)
	assert.Equal(t, []string{"/tmp/ltrans0.o"}, s.AddedInputFiles())
	assert.Equal(t, []string{"m"}, s.AddedLibraries())
	assert.Equal(t, []string{"/opt/lib"}, s.LibraryPaths())
}

func TestSession_CleanupRunsEveryHandler(t *testing.T) {
	s, _ := newTestSession(t)

	var order []string
	for _, name := range []string{"a", "b"} {
		name := name
		require.NoError(t, s.Load(name, rawBackend(func(set capability.Set) status.Status {
			return set.RegisterCleanup(func() status.Status {
				order = append(order, name)
				if name == "a" {
					return status.Err
				}
				return status.OK
			})
		})))
	}

	err := s.Cleanup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend a failed")
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, PhaseTerminated, s.Phase())
}

func TestSession_HandlesInvalidAfterCleanup(t *testing.T) {
	s, _ := newTestSession(t)

	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			return true, status.OK
		})
	})))
	h, _, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.True(t, s.handles.Valid(h))

	require.NoError(t, s.Cleanup())
	assert.False(t, s.handles.Valid(h))
}

func TestSession_VectorContents(t *testing.T) {
	s, _ := newTestSession(t, func(o *SessionOptions) {
		o.OutputType = capability.OutputDyn
		o.PluginOptions = []string{"-O3"}
	})

	var got capability.Set
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		got = set
		return status.OK
	})))

	assert.Equal(t, capability.APIVersion, got.APIVersion)
	assert.Equal(t, HostVersion, got.GoldVersion)
	assert.Equal(t, capability.OutputDyn, got.OutputType)
	assert.Equal(t, "a.out", got.OutputName)
	assert.Equal(t, []string{"-O3"}, got.Options)
	for _, tag := range []capability.Tag{
		capability.TagRegisterClaimFileHook,
		capability.TagAddSymbols,
		capability.TagGetSymbols,
		capability.TagMessage,
		capability.TagGetInputFile,
		capability.TagReleaseInputFile,
		capability.TagSetExtraLibraryPath,
	} {
		assert.True(t, got.Supports(tag), tag.String())
	}
}

func TestSession_HandlesScopedToOwner(t *testing.T) {
	s, _ := newTestSession(t)

	var hA handle.Handle
	require.NoError(t, s.Load("a", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			if f.Name != "/in/f1.ir" {
				return false, status.OK
			}
			hA = f.Handle
			return true, set.AddSymbols(f.Handle, irSymbols[:1])
		})
	})))

	var (
		addForeign, getForeign, releaseForeign status.Status
		openForeign                            status.Status
		getOwn                                 status.Status
		hB                                     handle.Handle
	)
	require.NoError(t, s.Load("b", rawBackend(func(set capability.Set) status.Status {
		set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			hB = f.Handle
			addForeign = set.AddSymbols(hA, []symbol.Symbol{{Name: "injected", Kind: symbol.Def}})
			return true, set.AddSymbols(f.Handle, irSymbols[2:])
		})
		return set.RegisterAllSymbolsRead(func() status.Status {
			getForeign = set.GetSymbols(hA, make([]symbol.Symbol, 1))
			_, openForeign = set.GetInputFile(hA)
			releaseForeign = set.ReleaseInputFile(hA)
			getOwn = set.GetSymbols(hB, make([]symbol.Symbol, 1))
			return status.OK
		})
	})))

	_, claimed, err := s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	require.True(t, claimed)
	_, claimed, err = s.ClaimPath("/in/f3.ir")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, s.AllSymbolsRead())

	assert.Equal(t, status.BadHandle, addForeign)
	assert.Equal(t, status.BadHandle, getForeign)
	assert.Equal(t, status.BadHandle, openForeign)
	assert.Equal(t, status.BadHandle, releaseForeign)
	assert.Equal(t, status.OK, getOwn)

	syms, err := s.Symbols(hA)
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "main", syms[0].Name)
}

func TestSession_ClaimWithoutDescriptor(t *testing.T) {
	s, _ := newTestSession(t)

	called := false
	require.NoError(t, s.Load("ir", rawBackend(func(set capability.Set) status.Status {
		return set.RegisterClaimFile(func(f handle.InputFile) (bool, status.Status) {
			called = true
			return true, status.OK
		})
	})))

	h, claimed, err := s.Claim(handle.InputFile{Name: "/in/f1.ir", Size: 14})
	require.Error(t, err)
	assert.Equal(t, status.Err, status.Of(err))
	assert.False(t, claimed)
	assert.Equal(t, handle.Invalid, h)
	assert.False(t, called)
	assert.False(t, s.Aborted())

	_, claimed, err = s.ClaimPath("/in/f1.ir")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestSession_DuplicateBackendName(t *testing.T) {
	s, _ := newTestSession(t)

	ok := rawBackend(func(capability.Set) status.Status { return status.OK })
	require.NoError(t, s.Load("ir", ok))

	err := s.Load("ir", ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrFailed))
	assert.Contains(t, err.Error(), "already loaded")
	assert.Equal(t, []string{"ir"}, s.Backends())
}

func TestSession_MessageTextVerbatim(t *testing.T) {
	s, _ := newTestSession(t)

	text := "inlined 100% of calls, 3%s left"
	require.NoError(t, s.Load("ir", Serve("ir", func(m *Module) error {
		infof := m.Infof
		infof(text)
		return nil
	})))

	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, text, diags[0].Text)
}
