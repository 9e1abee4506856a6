package metadata

import (
	"github.com/davejbax/corepe/binio"
)

// NetDirectory is the top of the CLI metadata engine: the COR20 (CLR)
// header plus the metadata root it points at. It owns a [TokenResolver] and
// [TypeSystem] scoped to its own [Root].
type NetDirectory struct {
	Header *COR20Header
	Root   *Root

	resolver *TokenResolver
	types    *TypeSystem
}

// RVAReader returns a reader over size bytes at an RVA; callers plug in
// whatever RVA-to-offset translation their PE model provides (kept out of
// this package so metadata has no import-time dependency on pe).
type RVAReader func(rva uint32, size uint32) (*binio.Reader, error)

// ParseNetDirectory reads the COR20 header from cor20Reader (already
// positioned/forked over the CLI header's 72 bytes), then the metadata root
// it points at via readRVA.
func ParseNetDirectory(cor20Reader *binio.Reader, readRVA RVAReader) (*NetDirectory, error) {
	header, err := ParseCOR20Header(cor20Reader)
	if err != nil {
		return nil, err
	}

	rootReader, err := readRVA(header.MetaData.RVA, header.MetaData.Size)
	if err != nil {
		return nil, err
	}

	root, err := ParseRoot(rootReader)
	if err != nil {
		return nil, err
	}

	nd := &NetDirectory{Header: header, Root: root}
	nd.resolver = NewTokenResolver(root)
	nd.types = NewTypeSystem(root)
	return nd, nil
}

// TokenResolver returns this directory's (lazily-backed) token resolver.
func (nd *NetDirectory) TokenResolver() *TokenResolver { return nd.resolver }

// TypeSystem returns this directory's lazy-singleton type system.
func (nd *NetDirectory) TypeSystem() *TypeSystem { return nd.types }

// EntryPointToken returns the managed entry-point token, or (Token{}, false)
// if the image's entry point is native (COMImageFlagsNativeEntrypoint set)
// rather than managed.
func (nd *NetDirectory) EntryPointToken() (Token, bool) {
	if nd.Header.Flags&COMImageFlagsNativeEntrypoint != 0 {
		return Token{}, false
	}
	return DecodeToken(nd.Header.EntryPointRVAOrToken), true
}

// EntryPointRVA returns the native entry-point RVA, or (0, false) if the
// image's entry point is managed.
func (nd *NetDirectory) EntryPointRVA() (uint32, bool) {
	if nd.Header.Flags&COMImageFlagsNativeEntrypoint == 0 {
		return 0, false
	}
	return nd.Header.EntryPointRVAOrToken, true
}
