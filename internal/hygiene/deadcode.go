package hygiene

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"
)

// ScanDeadCode flags top-level functions, types, and imports that are
// declared but never referenced elsewhere in their own package's file set,
// by walking go/ast's declarations and identifier uses.
//
// The analysis is intentionally file-set-local and conservative: a name
// used anywhere in the same scanned tree (including _test.go files unless
// excluded by ExcludePathPatterns) counts as referenced. It will not catch
// an exported identifier used only by an external importer — that is a
// whole-module reachability question out of scope for a repo hygiene pass.
func (s *Scanner) ScanDeadCode() ([]DeadCodeFinding, error) {
	excludePath, err := compileRegexps(s.Config.DeadCode.ExcludePathPatterns)
	if err != nil {
		return nil, err
	}

	type decl struct {
		name string
		file string
		line int
		kind DeadCodeKind
	}
	var decls []decl
	used := map[string]bool{}
	fset := token.NewFileSet()

	walkErr := s.walkFiles(func(rel string, fi fs.FileInfo) error {
		if filepath.Ext(rel) != ".go" {
			return nil
		}
		if matchesAny(excludePath, rel) {
			return nil
		}
		src, err := parser.ParseFile(fset, filepath.Join(s.Root, rel), nil, parser.ParseComments)
		if err != nil {
			return nil // unparsable file is not this scanner's concern
		}

		ignoreImports := s.ignoresUnusedImports(filepath.Base(rel))

		// declPos marks the identifier positions that ARE the declaration
		// itself, so the reference walk below doesn't count a name's own
		// declaration site as a use of itself.
		declPos := map[token.Pos]bool{}

		for _, decl0 := range src.Decls {
			switch d := decl0.(type) {
			case *ast.FuncDecl:
				if d.Recv != nil { // methods are reached via their type, not tracked standalone
					continue
				}
				name := d.Name.Name
				declPos[d.Name.Pos()] = true
				if s.isExcludedName(name) || name == "_" {
					continue
				}
				pos := fset.Position(d.Pos())
				decls = append(decls, decl{name: name, file: rel, line: pos.Line, kind: DeadCodeFunction})
			case *ast.GenDecl:
				if d.Tok == token.IMPORT {
					if ignoreImports {
						continue
					}
					for _, spec := range d.Specs {
						imp := spec.(*ast.ImportSpec)
						if imp.Name != nil && imp.Name.Name == "_" {
							continue
						}
						path := strings.Trim(imp.Path.Value, `"`)
						alias := importAlias(imp, path)
						if imp.Name != nil {
							declPos[imp.Name.Pos()] = true
						}
						pos := fset.Position(imp.Pos())
						decls = append(decls, decl{name: alias, file: rel, line: pos.Line, kind: DeadCodeImport})
					}
					continue
				}
				if d.Tok == token.TYPE {
					for _, spec := range d.Specs {
						ts, ok := spec.(*ast.TypeSpec)
						if !ok {
							continue
						}
						declPos[ts.Name.Pos()] = true
						if s.isExcludedName(ts.Name.Name) {
							continue
						}
						pos := fset.Position(ts.Pos())
						decls = append(decls, decl{name: ts.Name.Name, file: rel, line: pos.Line, kind: DeadCodeType})
					}
				}
			}
		}

		ast.Inspect(src, func(n ast.Node) bool {
			switch id := n.(type) {
			case *ast.Ident:
				if declPos[id.Pos()] {
					return true
				}
				used[id.Name] = true
			case *ast.SelectorExpr:
				if pkg, ok := id.X.(*ast.Ident); ok && !declPos[pkg.Pos()] {
					used[pkg.Name] = true
				}
			}
			return true
		})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	var findings []DeadCodeFinding
	counts := map[string]int{}
	for _, d := range decls {
		counts[d.name]++
	}
	for _, d := range decls {
		// A name declared more than once in the set (e.g. same import
		// alias in several files) is referenced by definition; skip it.
		if counts[d.name] > 1 {
			continue
		}
		if used[d.name] {
			continue
		}
		findings = append(findings, DeadCodeFinding{Name: d.name, File: d.file, Line: d.line, Kind: d.kind})
	}
	return findings, nil
}

func importAlias(imp *ast.ImportSpec, path string) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}

func (s *Scanner) isExcludedName(name string) bool {
	for _, n := range s.Config.DeadCode.ExcludeNames {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Scanner) ignoresUnusedImports(base string) bool {
	for _, n := range s.Config.DeadCode.IgnoreUnusedImportsIn {
		if n == base {
			return true
		}
	}
	return false
}

func compileRegexps(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp.Regexp, rel string) bool {
	for _, re := range res {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
