package rustup

// Platforms is the fixed set of rustup-init target triples synced on
// every `rustup download` run.
var Platforms = []string{
	"aarch64-fuschia",
	"aarch64-linux-android",
	"aarch64-pc-windows-msvc",
	"aarch64-unknown-hermit",
	"aarch64-unknown-linux-gnu",
	"aarch64-unknown-none",
	"aarch64-unknown-none-softfloat",
	"aarch64-unknown-redox",
	"arm-linux-androideabi",
	"arm-unknown-linux-gnueabi",
	"arm-unknown-linux-gnueabihf",
	"arm-unknown-linux-musleabi",
	"arm-unknown-linux-musleabihf",
	"armebv7r-none-eabi",
	"armebv7r-none-eabihf",
	"armv5te-unknown-linux-gnueabi",
	"armv5te-unknown-linux-musleabi",
	"armv7-apple-ios",
	"armv7-linux-androideabi",
	"armv7-unknown-linux-gnueabi",
	"armv7-unknown-linux-gnueabihf",
	"armv7-unknown-linux-musleabihf",
	"armv7s-apple-ios",
	"asmjs-unknown-emscripten",
	"i386-apple-ios",
	"i586-pc-windows-msvc",
	"i586-unknown-linux-gnu",
	"i586-unknown-linux-musl",
	"i686-apple-darwin",
	"i686-linux-android",
	"i686-unknown-freebsd",
	"i686-unknown-linux-gnu",
	"i686-unknown-linux-musl",
	"mips-unknown-linux-gnu",
	"mips-unknown-linux-musl",
	"mips64-unknown-linux-gnuabi64",
	"mips64-unknown-linux-muslabi64",
	"mips64el-unknown-linux-gnuabi64",
	"mips64el-unknown-linux-muslabi64",
	"mipsel-unknown-linux-gnu",
	"mipsel-unknown-linux-musl",
	"mipsisa32r6el-unknown-linux-gnu",
	"mipsisa64r6-unknown-linux-gnuabi64",
	"mipsisa64r6el-unknown-linux-gnuabi64",
	"nvptx64-nvidia-cuda",
	"powerpc-unknown-linux-gnu",
	"powerpc64-unknown-linux-gnu",
	"powerpc64le-unknown-linux-gnu",
	"riscv32gc-unknown-linux-gnu",
	"riscv32i-unknown-none-elf",
	"riscv32imac-unknown-none-elf",
	"riscv32imc-unknown-none-elf",
	"riscv64gc-unknown-none-elf",
	"riscv64imac-unknown-none-elf",
	"s390x-unknown-linux-gnu",
	"sparc64-unknown-linux-gnu",
	"sparcv9-sun-solaris",
	"thumbv6m-none-eabi",
	"thumbv7em-none-eabi",
	"thumbv7neon-linux-androideabi",
	"thumbv7neon-unknown-linux-gnueabihf",
	"wasm32-unknown-emscripten",
	"wasm32-unknown-unknown",
	"wasm32-wasi",
	"x86_64-apple-darwin",
	"x86_64-apple-ios",
	"x86_64-fortanix-unknown-sgx",
	"x86_64-fuschia",
	"x86_64-linux-android",
	"x86_64-pc-solaris",
	"x86_64-rumprun-netbsd",
	"x86_64-sun-solaris",
	"x86_64-unknown-freebsd",
	"x86_64-unknown-linux-gnu",
	"x86_64-unknown-linux-gnux32",
	"x86_64-unknown-linux-musl",
	"x86_64-unknown-netbsd",
	"x86_64-unknown-redox",
	"i686-pc-windows-gnu",
	"i686-pc-windows-msvc",
	"x86_64-pc-windows-gnu",
	"x86_64-pc-windows-msvc",
}
