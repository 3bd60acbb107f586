package esbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSFC(t *testing.T) {
	src := `<template>
  <div><template v-if="ok"><b>yes</b></template></div>
</template>
<script>
import x from "./x.js";
export default { name: "demo" };
</script>
<style>a { color: blue; }</style>
<style scoped>b { color: green; }</style>`

	out, err := compileSFC("/views/demo.vue", src)
	require.NoError(t, err)

	assert.Contains(t, out, `import x from "./x.js";`)
	assert.Contains(t, out, `var __sfc__ = { name: "demo" };`)
	assert.Contains(t, out, `__sfc__.template = "<div><template v-if=\"ok\"><b>yes</b></template></div>";`)
	assert.Contains(t, out, `from "asgard-runtime.js"`)
	assert.Contains(t, out, `a { color: blue; }\nb { color: green; }`)
	assert.True(t, strings.HasSuffix(out, "export default __sfc__;\n"))
}

func TestCompileSFCUsesLastDefaultExport(t *testing.T) {
	src := `<script>
/*
export default { name: "commented" };
*/
var usage = ` + "`" + `
export default { name: "quoted" };
` + "`" + `;
export default { name: "real", usage: usage };
</script>`

	out, err := compileSFC("/views/demo.vue", src)
	require.NoError(t, err)

	assert.Contains(t, out, `var __sfc__ = { name: "real", usage: usage };`)
	assert.Contains(t, out, `export default { name: "commented" };`)
	assert.Contains(t, out, `export default { name: "quoted" };`)
	assert.Equal(t, 1, strings.Count(out, "var __sfc__"))
}

func TestCompileSFCWithoutScript(t *testing.T) {
	out, err := compileSFC("/views/static.vue", "<template><p>static</p></template>")
	require.NoError(t, err)
	assert.Contains(t, out, "var __sfc__ = {};")
	assert.NotContains(t, out, "registerStyle")
}

func TestCompileSFCRequiresDefaultExport(t *testing.T) {
	_, err := compileSFC("/views/bad.vue", "<script>const a = 1;</script>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default export")
}

func TestStyleIDStable(t *testing.T) {
	assert.Equal(t, styleID("/views/a.vue"), styleID("/views/a.vue"))
	assert.NotEqual(t, styleID("/views/a.vue"), styleID("/other/a.vue"))
	assert.True(t, strings.HasPrefix(styleID("/views/a.vue"), "a-"))
}
