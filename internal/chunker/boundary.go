package chunker

import (
	"path/filepath"
	"regexp"
	"strings"
)

// boundaryPatterns maps a file extension to the regular expressions used
// to detect likely top-level declaration lines for that language (spec
// §4.2 step 2). Extensions not present here have no boundary family and
// fall straight to the line-window algorithm.
var boundaryPatterns = map[string][]*regexp.Regexp{
	".ts":  tsBoundaries(),
	".tsx": tsBoundaries(),
	".js":  tsBoundaries(),
	".jsx": tsBoundaries(),
	".py":  pyBoundaries(),
	".java": javaBoundaries(),
	".go":  goBoundaries(),
	".rs":  rsBoundaries(),
	".rb":  rbBoundaries(),
	".php": phpBoundaries(),
	".c":   cBoundaries(),
	".cpp": cBoundaries(),
	".h":   cBoundaries(),
}

func tsBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s*\w*\s*\(`),
		regexp.MustCompile(`^\s*(export\s+)?(default\s+)?class\s+\w+`),
		regexp.MustCompile(`^\s*(export\s+)?interface\s+\w+`),
		regexp.MustCompile(`^\s*(export\s+)?type\s+\w+\s*=`),
		regexp.MustCompile(`^\s*(export\s+)?(const|let)\s+\w+\s*=\s*(async\s*)?\(`),
		regexp.MustCompile(`^\s*(export\s+)?(const|let)\s+\w+\s*=\s*(async\s*)?function`),
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?(async\s+)?\w+\s*\([^)]*\)\s*[:{]`),
	}
}

func pyBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*(async\s+)?def\s+\w+\s*\(`),
		regexp.MustCompile(`^\s*class\s+\w+`),
	}
}

func javaBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?(final\s+)?(abstract\s+)?class\s+\w+`),
		regexp.MustCompile(`^\s*(public|private|protected)?\s*interface\s+\w+`),
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?(final\s+)?[\w<>\[\],\s]+\s+\w+\s*\([^)]*\)\s*(throws[\w\s,.]*)?\s*\{`),
	}
}

func goBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^func\s+(\([^)]*\)\s*)?\w+\s*\(`),
		regexp.MustCompile(`^type\s+\w+\s+(struct|interface)\s*\{`),
	}
}

func rsBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*(pub\s+)?(async\s+)?fn\s+\w+`),
		regexp.MustCompile(`^\s*(pub\s+)?struct\s+\w+`),
		regexp.MustCompile(`^\s*(pub\s+)?enum\s+\w+`),
		regexp.MustCompile(`^\s*(pub\s+)?trait\s+\w+`),
		regexp.MustCompile(`^\s*impl(<[^>]*>)?\s+\w+`),
	}
}

func rbBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*def\s+\w+`),
		regexp.MustCompile(`^\s*class\s+\w+`),
		regexp.MustCompile(`^\s*module\s+\w+`),
	}
}

func phpBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?function\s+\w+\s*\(`),
		regexp.MustCompile(`^\s*(abstract\s+)?class\s+\w+`),
		regexp.MustCompile(`^\s*interface\s+\w+`),
	}
}

func cBoundaries() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`^[\w\*\s]+\w+\s*\([^;]*\)\s*\{?\s*$`),
		regexp.MustCompile(`^\s*(typedef\s+)?struct\s+\w*\s*\{?`),
		regexp.MustCompile(`^\s*class\s+\w+`),
	}
}

// boundaryFamily returns the regex family for filepath's extension, or nil
// if none is defined.
func boundaryFamily(filepath_ string) []*regexp.Regexp {
	ext := strings.ToLower(filepath.Ext(filepath_))
	return boundaryPatterns[ext]
}

// detectBoundaries scans lines (0-indexed) and returns the set of boundary
// line indices per spec §4.2 step 2: line 0 is always a boundary; a regex
// match at line i adds i iff it is not already the last recorded boundary.
func detectBoundaries(lines []string, patterns []*regexp.Regexp) []int {
	boundaries := []int{0}

	for i, line := range lines {
		if i == 0 {
			continue
		}
		matched := false
		for _, re := range patterns {
			if re.MatchString(line) {
				matched = true
				break
			}
		}
		if matched && boundaries[len(boundaries)-1] != i {
			boundaries = append(boundaries, i)
		}
	}

	return boundaries
}
