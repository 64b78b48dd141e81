package regex

// opcode identifies what kind of instruction a program cell holds.
type opcode uint8

const (
	opInvalid opcode = iota
	opChar
	opByteClass
	opAny
	opJump
	opSplit
	opSave
	opMatch
)

// instruction is one cell of a compiled program. next holds absolute
// instruction indices (not the relative-then-fixed-up offsets the original
// C compiler used internally; here the compiler walks an AST so it always
// knows target positions once emitted, and never needs to shift already-
// emitted instructions to splice in a branch the way an append-and-patch
// compiler over a flat token stream does).
type instruction struct {
	op    opcode
	c     byte
	class *classNode
	next  [2]int
	save  int
}

// Program is a compiled regular expression's NFA bytecode.
type Program []instruction

// Regex is a compiled pattern ready to run against input strings.
type Regex struct {
	Source     string
	Program    Program
	GroupNames []string // index 0 is the pattern's first explicit group
}

// NumGroups returns the number of explicit capture groups in the pattern.
// There is no implicit whole-match group: since Run only succeeds when a
// match spans the whole input, the whole match is always s itself.
func (re *Regex) NumGroups() int {
	return len(re.GroupNames)
}

type compiler struct {
	prog Program
}

func (c *compiler) emit(in instruction) int {
	idx := len(c.prog)
	c.prog = append(c.prog, in)
	return idx
}

func (c *compiler) patch(idx, slot, target int) {
	c.prog[idx].next[slot] = target
}

// Compile parses and compiles pattern into a runnable Regex. The pattern is
// matched against the whole of the input by default. No save slots bracket
// the whole match: a successful Run always spans all of the input, so group
// 0 (if the pattern has one) is the pattern's first explicit group, exactly
// as the original compiler numbers them.
func Compile(pattern string) (*Regex, error) {
	ast, groups, err := parse(pattern)
	if err != nil {
		return nil, err
	}

	c := &compiler{}
	c.compileNode(ast)
	c.emit(instruction{op: opMatch})

	return &Regex{Source: pattern, Program: c.prog, GroupNames: groups}, nil
}

func (c *compiler) compileNode(n node) {
	switch v := n.(type) {
	case *litNode:
		c.emit(instruction{op: opChar, c: v.c})

	case *anyNode:
		c.emit(instruction{op: opAny})

	case *classNode:
		c.emit(instruction{op: opByteClass, class: v})

	case *concatNode:
		for _, item := range v.items {
			c.compileNode(item)
		}

	case *groupNode:
		c.emit(instruction{op: opSave, save: 2 * v.slot})
		c.compileNode(v.child)
		c.emit(instruction{op: opSave, save: 2*v.slot + 1})

	case *altNode:
		c.compileAlt(v)

	case *repeatNode:
		c.compileRepeat(v)

	default:
		panic("regex: unknown AST node type in compiler")
	}
}

func (c *compiler) compileAlt(v *altNode) {
	var jumps []int
	for i := 0; i < len(v.branches)-1; i++ {
		splitIdx := c.emit(instruction{op: opSplit})
		c.patch(splitIdx, 0, len(c.prog))
		c.compileNode(v.branches[i])
		jumpIdx := c.emit(instruction{op: opJump})
		jumps = append(jumps, jumpIdx)
		c.patch(splitIdx, 1, len(c.prog))
	}
	c.compileNode(v.branches[len(v.branches)-1])
	end := len(c.prog)
	for _, j := range jumps {
		c.patch(j, 0, end)
	}
}

func (c *compiler) compileRepeat(v *repeatNode) {
	for i := 0; i < v.min; i++ {
		c.compileNode(v.child)
	}
	switch {
	case v.max == -1:
		c.compileStar(v.child, v.greedy)
	default:
		for i := 0; i < v.max-v.min; i++ {
			c.compileOptional(v.child, v.greedy)
		}
	}
}

func (c *compiler) compileStar(child node, greedy bool) {
	loopStart := len(c.prog)
	splitIdx := c.emit(instruction{op: opSplit})
	bodyStart := len(c.prog)
	c.compileNode(child)
	c.emit(instruction{op: opJump, next: [2]int{loopStart, 0}})
	after := len(c.prog)
	if greedy {
		c.patch(splitIdx, 0, bodyStart)
		c.patch(splitIdx, 1, after)
	} else {
		c.patch(splitIdx, 0, after)
		c.patch(splitIdx, 1, bodyStart)
	}
}

func (c *compiler) compileOptional(child node, greedy bool) {
	splitIdx := c.emit(instruction{op: opSplit})
	bodyStart := len(c.prog)
	c.compileNode(child)
	after := len(c.prog)
	if greedy {
		c.patch(splitIdx, 0, bodyStart)
		c.patch(splitIdx, 1, after)
	} else {
		c.patch(splitIdx, 0, after)
		c.patch(splitIdx, 1, bodyStart)
	}
}
