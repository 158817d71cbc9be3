package schema

// JobStatus is the job_status oneof of a Status message.
type JobStatus int

const (
	JobStatusUnset JobStatus = iota
	JobStatusAccepted
	JobStatusWorking
	JobStatusCompleted
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusAccepted:
		return "accepted"
	case JobStatusWorking:
		return "working"
	case JobStatusCompleted:
		return "completed"
	default:
		return "unset"
	}
}

// Status is the server availability and job progress message.
type Status struct {
	Busy        bool
	JobStatus   JobStatus
	JobDir      string
	JobScrDir   string
	ServerJobID int32

	// oneof members are emitted whenever set; a recorded false is kept as false.
	jobStatusFalse bool
	unknown        []byte
}

func (m *Status) Type() MessageType { return MsgStatus }

// Completed reports whether the completed variant is set.
func (m *Status) Completed() bool { return m.JobStatus == JobStatusCompleted }

func (m *Status) Marshal() []byte {
	var b []byte
	b = appendBool(b, 1, m.Busy)
	if m.JobStatus != JobStatusUnset {
		b = appendOneofBool(b, m.JobStatus, !m.jobStatusFalse)
	}
	b = appendString(b, 5, m.JobDir)
	b = appendString(b, 6, m.JobScrDir)
	b = appendInt32(b, 7, m.ServerJobID)
	return append(b, m.unknown...)
}

func (m *Status) unmarshal(b []byte) error {
	*m = Status{}
	r := newFieldReader(b)
	for r.next() {
		if r.mismatched(statusWire) {
			continue
		}
		switch r.num {
		case 1:
			m.Busy = r.boolVal()
		case 2, 3, 4:
			m.JobStatus = JobStatus(r.num - 1)
			m.jobStatusFalse = !r.boolVal()
		case 5:
			m.JobDir = r.stringVal()
		case 6:
			m.JobScrDir = r.stringVal()
		case 7:
			m.ServerJobID = r.int32Val()
		default:
			r.skip()
		}
	}
	m.unknown = r.unknown
	return r.err
}

// UnitType is the Mol geometry unit. Only the names BOHR and ANGSTROM are
// known from the client; the numbers below are assumed and a recorded
// fixture carrying other values is replayed as-is.
type UnitType int32

const (
	UnitsBohr     UnitType = 0
	UnitsAngstrom UnitType = 1
)

// Mol is a molecular system: atoms, flat xyz geometry and electronic state.
type Mol struct {
	Atoms        []string
	Xyz          []float64
	Units        UnitType
	Charge       int32
	Multiplicity int32
	Closed       bool
	Restricted   bool

	unknown []byte
}

func (m *Mol) Type() MessageType { return MsgMol }

func (m *Mol) Marshal() []byte {
	var b []byte
	b = appendStrings(b, 1, m.Atoms)
	b = appendDoubles(b, 2, m.Xyz)
	b = appendInt32(b, 3, int32(m.Units))
	b = appendInt32(b, 4, m.Charge)
	b = appendInt32(b, 5, m.Multiplicity)
	b = appendBool(b, 6, m.Closed)
	b = appendBool(b, 7, m.Restricted)
	return append(b, m.unknown...)
}

func (m *Mol) unmarshal(b []byte) error {
	*m = Mol{}
	return m.merge(b)
}

// merge decodes b on top of m. A mol field seen twice in one payload merges
// its copies: scalars take the last value, repeated fields concatenate.
func (m *Mol) merge(b []byte) error {
	r := newFieldReader(b)
	for r.next() {
		if r.mismatched(molWire) {
			continue
		}
		switch r.num {
		case 1:
			m.Atoms = append(m.Atoms, r.stringVal())
		case 2:
			m.Xyz = r.doubles(m.Xyz)
		case 3:
			m.Units = UnitType(r.int32Val())
		case 4:
			m.Charge = r.int32Val()
		case 5:
			m.Multiplicity = r.int32Val()
		case 6:
			m.Closed = r.boolVal()
		case 7:
			m.Restricted = r.boolVal()
		default:
			r.skip()
		}
	}
	m.unknown = append(m.unknown, r.unknown...)
	return r.err
}

// RunType selects the job kind.
type RunType int32

const (
	RunEnergy   RunType = 0
	RunGradient RunType = 1
)

// MethodType selects the electronic structure method. Values are opaque here.
type MethodType int32

// JobInput is a job submission.
type JobInput struct {
	Mol             *Mol
	Run             RunType
	Method          MethodType
	Basis           string
	Xyz2            []float64
	UserOptions     []string
	Orb1aFile       string
	Orb1bFile       string
	ReturnBondOrder bool

	unknown []byte
}

func (m *JobInput) Type() MessageType { return MsgJobInput }

func (m *JobInput) Marshal() []byte {
	var b []byte
	if m.Mol != nil {
		b = appendMessage(b, 1, m.Mol.Marshal())
	}
	b = appendInt32(b, 2, int32(m.Run))
	b = appendInt32(b, 3, int32(m.Method))
	b = appendString(b, 4, m.Basis)
	b = appendDoubles(b, 5, m.Xyz2)
	b = appendStrings(b, 6, m.UserOptions)
	b = appendString(b, 7, m.Orb1aFile)
	b = appendString(b, 8, m.Orb1bFile)
	b = appendBool(b, 9, m.ReturnBondOrder)
	return append(b, m.unknown...)
}

func (m *JobInput) unmarshal(b []byte) error {
	*m = JobInput{}
	r := newFieldReader(b)
	for r.next() {
		if r.mismatched(jobInputWire) {
			continue
		}
		switch r.num {
		case 1:
			raw := r.bytesVal()
			if r.err != nil {
				break
			}
			if m.Mol == nil {
				m.Mol = &Mol{}
			}
			if err := m.Mol.merge(raw); err != nil {
				r.fail(err)
			}
		case 2:
			m.Run = RunType(r.int32Val())
		case 3:
			m.Method = MethodType(r.int32Val())
		case 4:
			m.Basis = r.stringVal()
		case 5:
			m.Xyz2 = r.doubles(m.Xyz2)
		case 6:
			m.UserOptions = append(m.UserOptions, r.stringVal())
		case 7:
			m.Orb1aFile = r.stringVal()
		case 8:
			m.Orb1bFile = r.stringVal()
		case 9:
			m.ReturnBondOrder = r.boolVal()
		default:
			r.skip()
		}
	}
	m.unknown = r.unknown
	return r.err
}

// JobOutput carries the results of a completed job.
type JobOutput struct {
	Mol         *Mol
	Energy      []float64
	Gradient    []float64
	Charges     []float64
	Spins       []float64
	Dipoles     []float64
	JobDir      string
	JobScrDir   string
	ServerJobID int32
	Orb1aFile   string
	Orb1bFile   string
	BondOrder   []float64

	unknown []byte
}

func (m *JobOutput) Type() MessageType { return MsgJobOutput }

func (m *JobOutput) Marshal() []byte {
	var b []byte
	if m.Mol != nil {
		b = appendMessage(b, 1, m.Mol.Marshal())
	}
	b = appendDoubles(b, 2, m.Energy)
	b = appendDoubles(b, 3, m.Gradient)
	b = appendDoubles(b, 4, m.Charges)
	b = appendDoubles(b, 5, m.Spins)
	b = appendDoubles(b, 6, m.Dipoles)
	b = appendString(b, 7, m.JobDir)
	b = appendString(b, 8, m.JobScrDir)
	b = appendInt32(b, 9, m.ServerJobID)
	b = appendString(b, 10, m.Orb1aFile)
	b = appendString(b, 11, m.Orb1bFile)
	b = appendDoubles(b, 12, m.BondOrder)
	return append(b, m.unknown...)
}

func (m *JobOutput) unmarshal(b []byte) error {
	*m = JobOutput{}
	r := newFieldReader(b)
	for r.next() {
		if r.mismatched(jobOutputWire) {
			continue
		}
		switch r.num {
		case 1:
			raw := r.bytesVal()
			if r.err != nil {
				break
			}
			if m.Mol == nil {
				m.Mol = &Mol{}
			}
			if err := m.Mol.merge(raw); err != nil {
				r.fail(err)
			}
		case 2:
			m.Energy = r.doubles(m.Energy)
		case 3:
			m.Gradient = r.doubles(m.Gradient)
		case 4:
			m.Charges = r.doubles(m.Charges)
		case 5:
			m.Spins = r.doubles(m.Spins)
		case 6:
			m.Dipoles = r.doubles(m.Dipoles)
		case 7:
			m.JobDir = r.stringVal()
		case 8:
			m.JobScrDir = r.stringVal()
		case 9:
			m.ServerJobID = r.int32Val()
		case 10:
			m.Orb1aFile = r.stringVal()
		case 11:
			m.Orb1bFile = r.stringVal()
		case 12:
			m.BondOrder = r.doubles(m.BondOrder)
		default:
			r.skip()
		}
	}
	m.unknown = r.unknown
	return r.err
}
