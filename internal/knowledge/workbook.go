package knowledge

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/types"
)

// ImportWorkbook reads project knowledge from the first sheet of an .xlsx file.
// Columns are detected from the header row; pros and objections cells may hold
// several values separated by ";" or newlines. Rows for the same project are merged.
func ImportWorkbook(path string) ([]types.ProjectKnowledge, error) {
	log := logger.Component("knowledge.workbook").With("path", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, eris.New("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, eris.Wrap(err, "read rows")
	}
	if len(rows) <= 1 {
		return nil, eris.New("no data rows")
	}

	projectIdx, prosIdx, objIdx := -1, -1, -1
	for i, h := range rows[0] {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "project"):
			if projectIdx == -1 {
				projectIdx = i
			}
		case strings.Contains(l, "objection") || strings.Contains(l, "con"):
			if objIdx == -1 {
				objIdx = i
			}
		case strings.Contains(l, "pro") || strings.Contains(l, "advantage"):
			if prosIdx == -1 {
				prosIdx = i
			}
		}
	}
	if projectIdx == -1 {
		return nil, eris.New("no project column")
	}
	log.WithFields(map[string]interface{}{
		"projectIdx": projectIdx,
		"prosIdx":    prosIdx,
		"objIdx":     objIdx,
	}).Info("detected workbook column indices")

	byProject := map[string]*types.ProjectKnowledge{}
	var order []string
	for i, r := range rows {
		if i == 0 {
			continue
		}
		name := strings.TrimSpace(cell(r, projectIdx))
		if name == "" {
			continue
		}
		pk, ok := byProject[name]
		if !ok {
			pk = &types.ProjectKnowledge{Project: name}
			byProject[name] = pk
			order = append(order, name)
		}
		pk.Pros = appendUnique(pk.Pros, splitValues(cell(r, prosIdx))...)
		pk.Objections = appendUnique(pk.Objections, splitValues(cell(r, objIdx))...)
	}

	out := make([]types.ProjectKnowledge, 0, len(order))
	for _, name := range order {
		out = append(out, *byProject[name])
	}
	log.WithField("projects", len(out)).Info("workbook import complete")
	return out, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

func splitValues(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendUnique(dst []string, vals ...string) []string {
	for _, v := range vals {
		dup := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
