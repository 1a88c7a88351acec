package mapbatch

// Config is the operator's immutable-after-construction configuration
// (spec §3 "Configuration"). It is built from Options the way the teacher
// builds beamopts.Struct from beamopts.Options — each Option mutates a
// draft Config, later options overriding earlier ones.
type Config struct {
	BatchSize      int64
	Parallelism    int64
	DropRemainder  bool
	OutputTypes    []Kind
	OutputShapes   []Shape
}

// Option configures a Config at construction time, mirroring the teacher's
// beamopts.Options / beamopts.Struct.Join pattern (internal/beamopts).
type Option interface {
	apply(*Config)
}

type optionFunc func(*Config)

func (f optionFunc) apply(c *Config) { f(c) }

// BatchSize sets the number of transformed records per emitted batch.
func BatchSize(n int64) Option {
	return optionFunc(func(c *Config) { c.BatchSize = n })
}

// Parallelism sets the v2-style direct parallelism cap.
func Parallelism(n int64) Option {
	return optionFunc(func(c *Config) { c.Parallelism = n })
}

// NumParallelBatches sets the v1-style parallelism knob: parallelism is
// derived as num_parallel_batches * batch_size once BatchSize is known, per
// spec §6's v1/v2 configuration surface. Because Options apply in order,
// pass BatchSize before NumParallelBatches (NewOperator re-validates
// afterwards regardless).
func NumParallelBatches(n int64) Option {
	return optionFunc(func(c *Config) { c.Parallelism = n * c.BatchSize })
}

// DropRemainder sets whether a final short batch is discarded.
func DropRemainder(drop bool) Option {
	return optionFunc(func(c *Config) { c.DropRemainder = drop })
}

// OutputSpec declares the K output component types and partial shapes.
func OutputSpec(types []Kind, shapes []Shape) Option {
	return optionFunc(func(c *Config) {
		c.OutputTypes = types
		c.OutputShapes = shapes
	})
}

func buildConfig(opts ...Option) Config {
	var c Config
	for _, o := range opts {
		o.apply(&c)
	}
	return c
}

// validate enforces spec §3/§6's construction preconditions.
func (c Config) validate() Status {
	if c.BatchSize <= 0 {
		return InvalidArgumentf("batch_size must be greater than zero, got %d", c.BatchSize)
	}
	if c.Parallelism <= 0 {
		return InvalidArgumentf("parallelism must be greater than zero, got %d", c.Parallelism)
	}
	if len(c.OutputTypes) != len(c.OutputShapes) {
		return InvalidArgumentf("output_types and output_shapes must have equal length, got %d and %d",
			len(c.OutputTypes), len(c.OutputShapes))
	}
	return Status{}
}

// ringLength is ceil(parallelism / batch_size), per spec §3.
func (c Config) ringLength() int64 {
	return (c.Parallelism + c.BatchSize - 1) / c.BatchSize
}
