package runtime

import (
	"bufio"
	"fmt"
	"hire-chat/errors"
	"io/fs"
	"path"
	"sort"
	"strings"
)

const dictionaryExt = ".txt"

// CensoredData is the merged content of every dictionary of a directory.
// Words are lower-cased, unique and sorted. Languages are the dictionary names.
type CensoredData struct {
	Words       []string
	Languages   []string
	PerLanguage map[string]int
}

// CensoredLoader reads the moderation dictionaries: one "<lang>.txt" file per
// language, one word per line, "#" starting a comment line.
type CensoredLoader struct {
	fsys fs.FS
}

func NewCensoredLoader(fsys fs.FS) *CensoredLoader {
	return &CensoredLoader{fsys: fsys}
}

func (l *CensoredLoader) LoadAll(dir string) (*CensoredData, error) {
	entries, err := fs.ReadDir(l.fsys, dir)
	if err != nil {
		return nil, err
	}

	data := &CensoredData{PerLanguage: make(map[string]int)}
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != dictionaryExt {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), dictionaryExt)
		words, err := l.dictionary(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("dictionary %s: %w", lang, err)
		}
		data.Languages = append(data.Languages, lang)
		data.PerLanguage[lang] = len(words)
		for _, w := range words {
			unique[w] = struct{}{}
		}
	}

	if len(unique) == 0 {
		return nil, errors.ErrEmptyWords
	}
	data.Words = make([]string, 0, len(unique))
	for w := range unique {
		data.Words = append(data.Words, w)
	}
	sort.Strings(data.Words)
	sort.Strings(data.Languages)
	return data, nil
}

func (l *CensoredLoader) dictionary(name string) ([]string, error) {
	f, err := l.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	// Scanner copes with \r\n line endings
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}
