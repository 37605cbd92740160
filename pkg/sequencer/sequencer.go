// Package sequencer 决定音频文件的处理顺序
package sequencer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/scanner"
	"github.com/ccp-p/asr-media-cli/audio-transcriber/pkg/utils"
)

// 排序策略
const (
	PolicyAscending   = "ascending"
	PolicyInterleaved = "interleaved"
)

// seriesPattern 匹配 "序号. 系列名 - 部分号.扩展名"，例如 "1. SeriesA - 2.mp3"
var seriesPattern = regexp.MustCompile(`^(\d+)\.\s*(.+?)\s*-\s*(\d+)\.[^.]+$`)

// GroupEntry 系列中的一个文件及其部分号
type GroupEntry struct {
	File scanner.AudioFile
	Part int
}

// FileGroup 同一系列的文件，按部分号升序排列
type FileGroup struct {
	Name    string
	Entries []GroupEntry
}

// SeriesInfo 从文件名中解析出的系列信息
type SeriesInfo struct {
	Index  int
	Series string
	Part   int
}

// ParseSeriesName 按系列命名规则解析文件名，不匹配时返回false
func ParseSeriesName(name string) (SeriesInfo, bool) {
	m := seriesPattern.FindStringSubmatch(name)
	if m == nil {
		return SeriesInfo{}, false
	}

	index, err := strconv.Atoi(m[1])
	if err != nil {
		return SeriesInfo{}, false
	}
	part, err := strconv.Atoi(m[3])
	if err != nil {
		return SeriesInfo{}, false
	}

	// macOS 上的文件名通常是NFD形式，统一成NFC再分组
	series := norm.NFC.String(strings.TrimSpace(m[2]))
	return SeriesInfo{Index: index, Series: series, Part: part}, true
}

// Ascending 按文件名字典序升序排列，不修改输入
func Ascending(files []scanner.AudioFile) []scanner.AudioFile {
	sorted := make([]scanner.AudioFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// GroupBySeries 把符合命名规则的文件按系列分组，组的顺序为首次出现的顺序
// 输入先按文件名升序排列，保证结果与文件系统的列举顺序无关
func GroupBySeries(files []scanner.AudioFile) ([]*FileGroup, []scanner.AudioFile) {
	var (
		groups    []*FileGroup
		unmatched []scanner.AudioFile
		byName    = make(map[string]*FileGroup)
	)

	for _, file := range Ascending(files) {
		info, ok := ParseSeriesName(file.Name)
		if !ok {
			unmatched = append(unmatched, file)
			continue
		}

		group, exists := byName[info.Series]
		if !exists {
			group = &FileGroup{Name: info.Series}
			byName[info.Series] = group
			groups = append(groups, group)
		}
		group.Entries = append(group.Entries, GroupEntry{File: file, Part: info.Part})
	}

	for _, group := range groups {
		sort.SliceStable(group.Entries, func(i, j int) bool {
			return group.Entries[i].Part < group.Entries[j].Part
		})
	}

	return groups, unmatched
}

// Interleave 逐轮从每个系列取出下一个部分，已取完的系列不再参与后续轮次
func Interleave(groups []*FileGroup) []scanner.AudioFile {
	var ordered []scanner.AudioFile

	for round := 0; ; round++ {
		taken := false
		for _, group := range groups {
			if round < len(group.Entries) {
				ordered = append(ordered, group.Entries[round].File)
				taken = true
			}
		}
		if !taken {
			return ordered
		}
	}
}

// Sequencer 根据配置的策略排序
type Sequencer struct {
	Policy        string
	DropUnmatched bool // 交错排序时直接丢弃不符合命名规则的文件
}

// NewSequencer 创建排序器
func NewSequencer(policy string, dropUnmatched bool) *Sequencer {
	return &Sequencer{Policy: policy, DropUnmatched: dropUnmatched}
}

// Order 返回处理顺序
// 交错排序时，不符合命名规则的文件默认按升序追加到末尾并输出警告
func (s *Sequencer) Order(files []scanner.AudioFile) []scanner.AudioFile {
	if s.Policy != PolicyInterleaved {
		return Ascending(files)
	}

	groups, unmatched := GroupBySeries(files)
	ordered := Interleave(groups)

	if len(unmatched) == 0 {
		return ordered
	}

	names := make([]string, 0, len(unmatched))
	for _, file := range unmatched {
		names = append(names, file.Name)
	}

	if s.DropUnmatched {
		utils.Debug("以下文件不符合系列命名规则，已跳过: %s", strings.Join(names, ", "))
		return ordered
	}

	utils.Warn("%d 个文件不符合系列命名规则，将在最后处理: %s", len(unmatched), strings.Join(names, ", "))
	return append(ordered, unmatched...)
}
