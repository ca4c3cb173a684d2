// Package nodemat compiles node-based material graphs into GLSL vertex and
// fragment shader pairs.
//
// A [Graph] holds [Block]s whose typed [ConnectionPoint]s are wired output to
// input. [Graph.Build] walks the graph from its vertex and fragment outputs,
// emits each reachable block once per stage and carries values needed across
// stages through varyings. The resulting [Program] lists the attributes,
// uniforms and samplers it declares and binds them each frame through a
// [UniformSetter]. [Material] keeps a compiled program in sync with the
// graph and the scene defines.
package nodemat
