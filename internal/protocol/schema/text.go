package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// textBuilder renders messages in a compact text-format style for diagnostics.
type textBuilder struct {
	sb strings.Builder
}

func (t *textBuilder) sep() {
	if t.sb.Len() > 0 {
		t.sb.WriteByte(' ')
	}
}

func (t *textBuilder) boolean(name string, v bool) {
	if !v {
		return
	}
	t.sep()
	t.sb.WriteString(name + ":true")
}

func (t *textBuilder) integer(name string, v int64) {
	if v == 0 {
		return
	}
	t.sep()
	t.sb.WriteString(name + ":" + strconv.FormatInt(v, 10))
}

func (t *textBuilder) str(name, v string) {
	if v == "" {
		return
	}
	t.sep()
	t.sb.WriteString(name + ":" + strconv.Quote(v))
}

func (t *textBuilder) strs(name string, vs []string) {
	for _, v := range vs {
		t.sep()
		t.sb.WriteString(name + ":" + strconv.Quote(v))
	}
}

func (t *textBuilder) doubles(name string, vs []float64) {
	if len(vs) == 0 {
		return
	}
	t.sep()
	t.sb.WriteString(name + ":[")
	for i, v := range vs {
		if i > 0 {
			t.sb.WriteString(", ")
		}
		t.sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	t.sb.WriteByte(']')
}

func (t *textBuilder) message(name string, m fmt.Stringer) {
	t.sep()
	t.sb.WriteString(name + ":{" + m.String() + "}")
}

func (t *textBuilder) unknown(raw []byte) {
	if len(raw) == 0 {
		return
	}
	t.sep()
	t.sb.WriteString(fmt.Sprintf("unknown_bytes:%d", len(raw)))
}

func (t *textBuilder) String() string {
	return t.sb.String()
}

func (m *Status) String() string {
	var t textBuilder
	t.boolean("busy", m.Busy)
	if m.JobStatus != JobStatusUnset {
		t.sep()
		t.sb.WriteString(m.JobStatus.String() + ":" + strconv.FormatBool(!m.jobStatusFalse))
	}
	t.str("job_dir", m.JobDir)
	t.str("job_scr_dir", m.JobScrDir)
	t.integer("server_job_id", int64(m.ServerJobID))
	t.unknown(m.unknown)
	return t.String()
}

func (m *Mol) String() string {
	var t textBuilder
	t.strs("atoms", m.Atoms)
	t.doubles("xyz", m.Xyz)
	t.integer("units", int64(m.Units))
	t.integer("charge", int64(m.Charge))
	t.integer("multiplicity", int64(m.Multiplicity))
	t.boolean("closed", m.Closed)
	t.boolean("restricted", m.Restricted)
	t.unknown(m.unknown)
	return t.String()
}

func (m *JobInput) String() string {
	var t textBuilder
	if m.Mol != nil {
		t.message("mol", m.Mol)
	}
	t.integer("run", int64(m.Run))
	t.integer("method", int64(m.Method))
	t.str("basis", m.Basis)
	t.doubles("xyz2", m.Xyz2)
	t.strs("user_options", m.UserOptions)
	t.str("orb1afile", m.Orb1aFile)
	t.str("orb1bfile", m.Orb1bFile)
	t.boolean("return_bond_order", m.ReturnBondOrder)
	t.unknown(m.unknown)
	return t.String()
}

func (m *JobOutput) String() string {
	var t textBuilder
	if m.Mol != nil {
		t.message("mol", m.Mol)
	}
	t.doubles("energy", m.Energy)
	t.doubles("gradient", m.Gradient)
	t.doubles("charges", m.Charges)
	t.doubles("spins", m.Spins)
	t.doubles("dipoles", m.Dipoles)
	t.str("job_dir", m.JobDir)
	t.str("job_scr_dir", m.JobScrDir)
	t.integer("server_job_id", int64(m.ServerJobID))
	t.str("orb1afile", m.Orb1aFile)
	t.str("orb1bfile", m.Orb1bFile)
	t.doubles("bond_order", m.BondOrder)
	t.unknown(m.unknown)
	return t.String()
}
