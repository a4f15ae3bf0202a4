package packet

// Client → server opcodes.
const (
	C_OPCODE_HELLO  byte = 0x01 // [S name][S password]
	C_OPCODE_INTENT byte = 0x02 // [H vx][H vy] tiles/s ×100, signed
	C_OPCODE_QUIT   byte = 0x03
)

// Server → client opcodes.
const (
	S_OPCODE_WELCOME  byte = 0x80 // [D entity][H width][H height][D tileW ×100][D tileH ×100]
	S_OPCODE_GRID     byte = 0x81 // [H width][H height] then one label byte per cell, row-major
	S_OPCODE_SNAPSHOT byte = 0x82 // [D frame lo][D frame hi][H count] then per entity: [D id][C kind][H frame] 4×([D x][D y]) ×100
	S_OPCODE_DENIED   byte = 0x83 // [S reason]
)

// FixedScale converts between world floats and the wire's fixed-point ints.
const FixedScale = 100
